package abi

import (
	"fmt"
	"math"
)

// Allocator hands out buffers from the heap region of a Memory. It is a bump
// allocator that keeps a table of live buffers: freeing a pointer that is not
// live is a protocol violation, and the heap rewinds once nothing is live.
type Allocator struct {
	mem  *Memory
	base uint32
	top  uint32
	live map[uint32]uint32
	used uint32
}

func NewAllocator(mem *Memory, base uint32) *Allocator {
	if base == 0 {
		base = 8
	}
	return &Allocator{
		mem:  mem,
		base: base,
		top:  base,
		live: make(map[uint32]uint32),
	}
}

// Alloc reserves size bytes aligned to align and returns a zeroed buffer.
// Zero-sized requests still receive a unique pointer.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, ErrInvalidAlignment
	}
	if size == 0 {
		size = 1
	}

	ptr := alignUp(a.top, align)
	end := uint64(ptr) + uint64(size)
	if ptr < a.top || end > math.MaxUint32 {
		return 0, ErrMemoryExhausted
	}
	if err := a.mem.Grow(uint32(end)); err != nil {
		return 0, err
	}
	if err := a.mem.Zero(ptr, size); err != nil {
		return 0, err
	}

	a.live[ptr] = size
	a.used += size
	a.top = uint32(end)
	return ptr, nil
}

// Free releases a buffer returned by Alloc.
func (a *Allocator) Free(ptr uint32) error {
	if ptr == 0 {
		return ErrNullPointer
	}
	size, ok := a.live[ptr]
	if !ok {
		return fmt.Errorf("%w (ptr %d)", ErrDoubleFree, ptr)
	}
	delete(a.live, ptr)
	a.used -= size
	if len(a.live) == 0 {
		a.top = a.base
	}
	return nil
}

// Live is the number of buffers not yet freed.
func (a *Allocator) Live() int {
	return len(a.live)
}

func (a *Allocator) Top() uint32 {
	return a.top
}

// InUse is the number of bytes held by live buffers.
func (a *Allocator) InUse() uint32 {
	return a.used
}
