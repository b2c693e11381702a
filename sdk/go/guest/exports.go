package guest

import (
	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/codec"
	"github.com/zeusync/worldcore/internal/core/values"
)

// FrameEvent is the event name of the per-tick Exec call.
const FrameEvent = "core/frame"

// Context is passed to every Exec call.
type Context struct {
	Time float32
}

// Module is the guest's simulation logic.
type Module interface {
	Init(g *Guest)
	Exec(g *Guest, ctx Context, event string, data values.ComponentSet)
}

// Exports adapts a Module to the raw entry points the host calls.
type Exports struct {
	g *Guest
	m Module
}

func Export(g *Guest, m Module) *Exports {
	return &Exports{g: g, m: m}
}

func (e *Exports) Guest() *Guest {
	return e.g
}

func (e *Exports) Init() {
	e.m.Init(e.g)
}

// Exec takes ownership of the event name and data buffers the host wrote into
// guest memory and frees them when the module returns.
func (e *Exports) Exec(time float32, namePtr, nameLen, dataPtr, dataLen uint32) {
	scope := e.g.inst.Begin()
	defer func() {
		if err := scope.Release(); err != nil {
			abi.Raise("exec", err)
		}
	}()

	dec := codec.NewDecoder(e.g.inst.Memory(), codec.WithBufferHook(scope.Adopt))
	name, err := dec.String(namePtr, nameLen)
	if err != nil {
		abi.Raise("exec", err)
	}
	data, err := dec.ComponentSet(dataPtr, dataLen)
	if err != nil {
		abi.Raise("exec", err)
	}
	e.m.Exec(e.g, Context{Time: time}, name, data)
}
