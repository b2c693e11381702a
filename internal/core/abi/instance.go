package abi

import (
	"errors"
)

const (
	// ReturnAreaPtr is where composite results of a call are written. The area
	// is overwritten by the next call, so callers copy out what they need first.
	ReturnAreaPtr  uint32 = 8
	ReturnAreaSize uint32 = 96

	// HeapBase is the first address handed out by an instance's allocator.
	HeapBase = ReturnAreaPtr + ReturnAreaSize
)

// Config sizes a guest instance's memory.
type Config struct {
	InitialMemory uint32
	MemoryLimit   uint32
}

func DefaultConfig() Config {
	return Config{
		InitialMemory: PageSize,
		MemoryLimit:   64 * 1024 * 1024,
	}
}

// Instance is one guest module's side of the boundary: its linear memory, its
// heap allocator and the fixed return area. Pointer 0 is never a valid buffer.
type Instance struct {
	mem   *Memory
	alloc *Allocator
}

func NewInstance(cfg Config) *Instance {
	mem := NewMemory(cfg.InitialMemory, cfg.MemoryLimit)
	return &Instance{
		mem:   mem,
		alloc: NewAllocator(mem, HeapBase),
	}
}

func (i *Instance) Memory() *Memory {
	return i.mem
}

// ReturnArea clears and returns the return area pointer.
func (i *Instance) ReturnArea() uint32 {
	_ = i.mem.Zero(ReturnAreaPtr, ReturnAreaSize)
	return ReturnAreaPtr
}

// Alloc is the instance's exported allocation entry point; buffers the host
// writes into guest memory are obtained here and owned by the guest afterwards.
func (i *Instance) Alloc(size, align uint32) (uint32, error) {
	return i.alloc.Alloc(size, align)
}

func (i *Instance) Free(ptr uint32) error {
	return i.alloc.Free(ptr)
}

// Live reports how many buffers are currently allocated.
func (i *Instance) Live() int {
	return i.alloc.Live()
}

// Top is one past the highest byte handed out since the heap last rewound.
func (i *Instance) Top() uint32 {
	return i.alloc.Top()
}

// Begin opens a scope for one boundary call.
func (i *Instance) Begin() *Scope {
	return &Scope{inst: i}
}

// Scope owns every buffer acquired for a single call and releases them
// exactly once when the call ends.
type Scope struct {
	inst     *Instance
	owned    []uint32
	released bool
}

func (s *Scope) Memory() *Memory {
	return s.inst.mem
}

// Alloc acquires a buffer that is released with the scope.
func (s *Scope) Alloc(size, align uint32) (uint32, error) {
	if s.released {
		return 0, ErrScopeReleased
	}
	ptr, err := s.inst.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	s.owned = append(s.owned, ptr)
	return ptr, nil
}

// Adopt takes ownership of a buffer allocated by the other side of the call.
func (s *Scope) Adopt(ptr uint32) {
	if ptr == 0 {
		return
	}
	s.owned = append(s.owned, ptr)
}

// Owned is the number of buffers the scope will free.
func (s *Scope) Owned() int {
	return len(s.owned)
}

// Release frees every owned buffer. A second Release is a violation.
func (s *Scope) Release() error {
	if s.released {
		return ErrScopeReleased
	}
	s.released = true

	var errs []error
	for _, ptr := range s.owned {
		if err := s.inst.Free(ptr); err != nil {
			errs = append(errs, err)
		}
	}
	s.owned = nil
	return errors.Join(errs...)
}
