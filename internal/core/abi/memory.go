package abi

import (
	"encoding/binary"
	"math"
)

// PageSize is the growth granularity of a Memory.
const PageSize = 64 * 1024

// Memory is a guest's little-endian linear memory. Every access is bounds
// checked; a failed check is a protocol violation.
type Memory struct {
	buf   []byte
	limit uint32
}

// NewMemory allocates initial bytes (rounded up to a page) that may grow up to limit.
func NewMemory(initial, limit uint32) *Memory {
	if limit == 0 {
		limit = math.MaxUint32
	}
	initial = alignUp(max(initial, PageSize), PageSize)
	if initial > limit {
		initial = limit
	}
	return &Memory{buf: make([]byte, initial), limit: limit}
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *Memory) Limit() uint32 {
	return m.limit
}

// Grow makes sure at least size bytes are addressable.
func (m *Memory) Grow(size uint32) error {
	if size <= m.Size() {
		return nil
	}
	if size > m.limit {
		return ErrMemoryExhausted
	}
	next := alignUp(size, PageSize)
	if next > m.limit || next < size {
		next = m.limit
	}
	grown := make([]byte, next)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

// Bytes returns a view of [ptr, ptr+n). The view is only valid until the next Grow.
func (m *Memory) Bytes(ptr, n uint32) ([]byte, error) {
	end := uint64(ptr) + uint64(n)
	if end > uint64(len(m.buf)) {
		return nil, &AccessError{Ptr: ptr, Size: n, Mem: m.Size()}
	}
	return m.buf[ptr:end:end], nil
}

// Write copies data to ptr.
func (m *Memory) Write(ptr uint32, data []byte) error {
	dst, err := m.Bytes(ptr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Zero clears [ptr, ptr+n).
func (m *Memory) Zero(ptr, n uint32) error {
	dst, err := m.Bytes(ptr, n)
	if err != nil {
		return err
	}
	clear(dst)
	return nil
}

func (m *Memory) LoadU8(ptr uint32) (uint8, error) {
	b, err := m.Bytes(ptr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Memory) StoreU8(ptr uint32, v uint8) error {
	b, err := m.Bytes(ptr, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (m *Memory) LoadU32(ptr uint32) (uint32, error) {
	b, err := m.Bytes(ptr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Memory) StoreU32(ptr uint32, v uint32) error {
	b, err := m.Bytes(ptr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (m *Memory) LoadU64(ptr uint32) (uint64, error) {
	b, err := m.Bytes(ptr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *Memory) StoreU64(ptr uint32, v uint64) error {
	b, err := m.Bytes(ptr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}

func (m *Memory) LoadF32(ptr uint32) (float32, error) {
	v, err := m.LoadU32(ptr)
	return math.Float32frombits(v), err
}

func (m *Memory) StoreF32(ptr uint32, v float32) error {
	return m.StoreU32(ptr, math.Float32bits(v))
}

func (m *Memory) LoadF64(ptr uint32) (float64, error) {
	v, err := m.LoadU64(ptr)
	return math.Float64frombits(v), err
}

func (m *Memory) StoreF64(ptr uint32, v float64) error {
	return m.StoreU64(ptr, math.Float64bits(v))
}

// LoadF32s reads len(dst) consecutive floats starting at ptr.
func (m *Memory) LoadF32s(ptr uint32, dst []float32) error {
	b, err := m.Bytes(ptr, uint32(len(dst))*4)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}

// StoreF32s writes src as consecutive floats starting at ptr.
func (m *Memory) StoreF32s(ptr uint32, src []float32) error {
	b, err := m.Bytes(ptr, uint32(len(src))*4)
	if err != nil {
		return err
	}
	for i, v := range src {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return nil
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// AlignUp rounds v up to a multiple of align, which must be a power of two.
func AlignUp(v, align uint32) uint32 {
	return alignUp(v, align)
}
