package codec

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Allocator acquires buffers in the memory being encoded into. abi.Scope and
// abi.Instance both satisfy it.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
}

// Encoder writes values into a linear memory, allocating out-of-line buffers
// from alloc. Whoever owns alloc owns those buffers.
type Encoder struct {
	mem   *abi.Memory
	alloc Allocator
}

func NewEncoder(mem *abi.Memory, alloc Allocator) *Encoder {
	return &Encoder{mem: mem, alloc: alloc}
}

// Value allocates a value record and encodes v into it.
func (e *Encoder) Value(v values.Value) (uint32, error) {
	ptr, err := e.alloc.Alloc(ValueSize, ValueAlign)
	if err != nil {
		return 0, err
	}
	return ptr, e.PutValue(ptr, v)
}

// PutValue encodes v into the record at ptr.
func (e *Encoder) PutValue(ptr uint32, v values.Value) error {
	if v == nil {
		return ErrNilValue
	}
	if err := e.mem.Zero(ptr, ValueSize); err != nil {
		return err
	}
	if err := e.mem.StoreU8(ptr, uint8(v.Kind())); err != nil {
		return err
	}

	payload := ptr + payloadOffset
	switch x := v.(type) {
	case values.ListValue:
		if err := e.mem.StoreU8(ptr+1, uint8(x.Elem())); err != nil {
			return err
		}
		data, n, err := e.list(x)
		if err != nil {
			return err
		}
		return e.putPair(payload, data, n)
	case values.OptionValue:
		if err := e.mem.StoreU8(ptr+1, uint8(x.Elem())); err != nil {
			return err
		}
		item, ok := x.Get()
		if !ok {
			return nil
		}
		if err := e.mem.StoreU8(payload, 1); err != nil {
			return err
		}
		return e.putScalar(payload+optionItemOffset(x.Elem()), item)
	case values.Scalar:
		return e.putScalar(payload, x)
	default:
		return fmt.Errorf("%w: %T", values.ErrInvalidType, v)
	}
}

// PutOptionValue writes a presence byte at ptr and, when v is non-nil, the
// value record at ptr+8.
func (e *Encoder) PutOptionValue(ptr uint32, v values.Value) error {
	if v == nil {
		return e.mem.StoreU8(ptr, 0)
	}
	if err := e.mem.StoreU8(ptr, 1); err != nil {
		return err
	}
	return e.PutValue(ptr+8, v)
}

func (e *Encoder) putScalar(ptr uint32, s values.Scalar) error {
	m := e.mem
	switch x := s.(type) {
	case values.Empty:
		return nil
	case values.Bool:
		var b uint8
		if x {
			b = 1
		}
		return m.StoreU8(ptr, b)
	case values.I32:
		return m.StoreU32(ptr, uint32(x))
	case values.U32:
		return m.StoreU32(ptr, uint32(x))
	case values.U64:
		return m.StoreU64(ptr, uint64(x))
	case values.F32:
		return m.StoreF32(ptr, float32(x))
	case values.F64:
		return m.StoreF64(ptr, float64(x))
	case values.String:
		return e.putString(ptr, string(x))
	case values.EntityRef:
		return e.putEntity(ptr, x.Entity())
	case values.Vec2:
		return m.StoreF32s(ptr, x[:])
	case values.Vec3:
		return m.StoreF32s(ptr, x[:])
	case values.Vec4:
		return m.StoreF32s(ptr, x[:])
	case values.Quat:
		return m.StoreF32s(ptr, x[:])
	case values.Mat4:
		for col := range x {
			if err := m.StoreF32s(ptr+uint32(col)*16, x[col][:]); err != nil {
				return err
			}
		}
		return nil
	case values.ObjectRef:
		return e.putString(ptr, x.ID)
	default:
		return fmt.Errorf("%w: %T", values.ErrInvalidType, s)
	}
}

func (e *Encoder) list(l values.ListValue) (uint32, uint32, error) {
	n := uint32(l.Len())
	if n == 0 {
		return 0, 0, nil
	}
	size, align := ElementLayout(l.Elem())
	data, err := e.alloc.Alloc(size*n, align)
	if err != nil {
		return 0, 0, err
	}
	for i := uint32(0); i < n; i++ {
		if err = e.putScalar(data+i*size, l.At(int(i))); err != nil {
			return 0, 0, err
		}
	}
	return data, n, nil
}

// String copies s into a fresh buffer. The empty string is (0, 0).
func (e *Encoder) String(s string) (uint32, uint32, error) {
	if len(s) == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(uint32(len(s)), 1)
	if err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), e.mem.Write(ptr, []byte(s))
}

// PutString writes the (ptr, len) pair of a fresh copy of s at at.
func (e *Encoder) PutString(at uint32, s string) error {
	return e.putString(at, s)
}

func (e *Encoder) putString(at uint32, s string) error {
	ptr, n, err := e.String(s)
	if err != nil {
		return err
	}
	return e.putPair(at, ptr, n)
}

func (e *Encoder) putPair(at, ptr, n uint32) error {
	if err := e.mem.StoreU32(at, ptr); err != nil {
		return err
	}
	return e.mem.StoreU32(at+4, n)
}

// PutPair writes a (ptr, len) pair at at.
func (e *Encoder) PutPair(at, ptr, n uint32) error {
	return e.putPair(at, ptr, n)
}

func (e *Encoder) putEntity(at uint32, id models.EntityID) error {
	id0, id1 := id.Words()
	if err := e.mem.StoreU64(at, id0); err != nil {
		return err
	}
	return e.mem.StoreU64(at+8, id1)
}

// PutEntityID writes id0, id1 at at.
func (e *Encoder) PutEntityID(at uint32, id models.EntityID) error {
	return e.putEntity(at, id)
}

// ComponentSet encodes set as an array of entries.
func (e *Encoder) ComponentSet(set values.ComponentSet) (uint32, uint32, error) {
	n := uint32(len(set))
	if n == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(EntrySize*n, ValueAlign)
	if err != nil {
		return 0, 0, err
	}
	for i, entry := range set {
		at := ptr + uint32(i)*EntrySize
		if err = e.mem.StoreU32(at, uint32(entry.Index)); err != nil {
			return 0, 0, err
		}
		if err = e.PutValue(at+entryValueOffset, entry.Value); err != nil {
			return 0, 0, fmt.Errorf("component %d: %w", entry.Index, err)
		}
	}
	return ptr, n, nil
}

// Indices encodes a list of component indices.
func (e *Encoder) Indices(indices []models.ComponentIndex) (uint32, uint32, error) {
	n := uint32(len(indices))
	if n == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(IndexSize*n, 4)
	if err != nil {
		return 0, 0, err
	}
	for i, idx := range indices {
		if err = e.mem.StoreU32(ptr+uint32(i)*IndexSize, uint32(idx)); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

// EntityIDs encodes a list of entity ids.
func (e *Encoder) EntityIDs(ids []models.EntityID) (uint32, uint32, error) {
	n := uint32(len(ids))
	if n == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(EntityIDSize*n, 8)
	if err != nil {
		return 0, 0, err
	}
	for i, id := range ids {
		if err = e.putEntity(ptr+uint32(i)*EntityIDSize, id); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

// Rows encodes query rows; each row's values are a separate array of records.
func (e *Encoder) Rows(rows []Row) (uint32, uint32, error) {
	n := uint32(len(rows))
	if n == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(RowSize*n, 8)
	if err != nil {
		return 0, 0, err
	}
	for i, row := range rows {
		at := ptr + uint32(i)*RowSize
		if err = e.putEntity(at, row.Entity); err != nil {
			return 0, 0, err
		}
		data, count, err := e.valueArray(row.Values)
		if err != nil {
			return 0, 0, err
		}
		if err = e.putPair(at+16, data, count); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

func (e *Encoder) valueArray(vs []values.Value) (uint32, uint32, error) {
	n := uint32(len(vs))
	if n == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(ValueSize*n, ValueAlign)
	if err != nil {
		return 0, 0, err
	}
	for i, v := range vs {
		if err = e.PutValue(ptr+uint32(i)*ValueSize, v); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

// Hits encodes raycast hits.
func (e *Encoder) Hits(hits []Hit) (uint32, uint32, error) {
	n := uint32(len(hits))
	if n == 0 {
		return 0, 0, nil
	}
	ptr, err := e.alloc.Alloc(HitSize*n, 8)
	if err != nil {
		return 0, 0, err
	}
	for i, hit := range hits {
		at := ptr + uint32(i)*HitSize
		if err = e.putEntity(at, hit.Entity); err != nil {
			return 0, 0, err
		}
		if err = e.mem.StoreF32(at+16, hit.Distance); err != nil {
			return 0, 0, err
		}
	}
	return ptr, n, nil
}
