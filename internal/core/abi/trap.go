package abi

import (
	"errors"
	"fmt"
)

var ErrGuestPanic = errors.New("guest panicked")

// Trap aborts a guest call. It unwinds through guest code to the runtime,
// which marks the instance faulted.
type Trap struct {
	Op  string
	Err error
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap in %s: %v", t.Op, t.Err)
}

func (t *Trap) Unwrap() error {
	return t.Err
}

// Raise aborts the current guest call.
func Raise(op string, err error) {
	panic(&Trap{Op: op, Err: err})
}

// Catch runs fn and converts a trap, or any other panic, into an error.
func Catch(op string, fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch x := r.(type) {
		case *Trap:
			err = x
		case error:
			err = &Trap{Op: op, Err: fmt.Errorf("%w: %w", ErrGuestPanic, x)}
		default:
			err = &Trap{Op: op, Err: fmt.Errorf("%w: %v", ErrGuestPanic, x)}
		}
	}()
	fn()
	return nil
}
