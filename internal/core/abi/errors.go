package abi

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation is the root of every fatal boundary error. A guest that
// triggers one is considered faulted.
var ErrProtocolViolation = errors.New("protocol violation")

// Transport errors
var (
	ErrOutOfBounds      = fmt.Errorf("%w: memory access out of bounds", ErrProtocolViolation)
	ErrNullPointer      = fmt.Errorf("%w: null pointer", ErrProtocolViolation)
	ErrDoubleFree       = fmt.Errorf("%w: buffer freed twice or never allocated", ErrProtocolViolation)
	ErrMisaligned       = fmt.Errorf("%w: misaligned pointer", ErrProtocolViolation)
	ErrScopeReleased    = fmt.Errorf("%w: scope already released", ErrProtocolViolation)
	ErrMemoryExhausted  = errors.New("guest memory limit reached")
	ErrInvalidAlignment = errors.New("alignment must be a power of two")
)

// IsViolation reports whether err is fatal for the instance that produced it.
func IsViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

// AccessError describes a failed memory access.
type AccessError struct {
	Ptr  uint32
	Size uint32
	Mem  uint32
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access [%d, +%d) beyond memory size %d", e.Ptr, e.Size, e.Mem)
}

func (e *AccessError) Unwrap() error {
	return ErrOutOfBounds
}
