package codec

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Decoder reads values out of a linear memory. The discriminant is always
// authoritative; anything it cannot account for is a protocol violation and
// no partial result is returned.
type Decoder struct {
	mem  *abi.Memory
	hook func(ptr uint32)
}

type DecoderOption func(*Decoder)

// WithBufferHook reports every out-of-line buffer the decoder walks. A caller
// that received ownership of a result uses it to release those buffers.
func WithBufferHook(fn func(ptr uint32)) DecoderOption {
	return func(d *Decoder) {
		d.hook = fn
	}
}

func NewDecoder(mem *abi.Memory, opts ...DecoderOption) *Decoder {
	d := &Decoder{mem: mem}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// span validates that n items of size bytes starting at ptr are addressable
// and reports the buffer to the hook.
func (d *Decoder) span(ptr, n, size uint32) error {
	if n == 0 {
		return nil
	}
	if ptr == 0 {
		return abi.ErrNullPointer
	}
	total := uint64(n) * uint64(size)
	if total > uint64(d.mem.Size()) {
		return &abi.AccessError{Ptr: ptr, Size: uint32(min(total, uint64(^uint32(0)))), Mem: d.mem.Size()}
	}
	if _, err := d.mem.Bytes(ptr, uint32(total)); err != nil {
		return err
	}
	if d.hook != nil {
		d.hook(ptr)
	}
	return nil
}

func (d *Decoder) pair(at uint32) (uint32, uint32, error) {
	ptr, err := d.mem.LoadU32(at)
	if err != nil {
		return 0, 0, err
	}
	n, err := d.mem.LoadU32(at + 4)
	if err != nil {
		return 0, 0, err
	}
	return ptr, n, nil
}

// Pair reads a (ptr, len) pair at at.
func (d *Decoder) Pair(at uint32) (uint32, uint32, error) {
	return d.pair(at)
}

// Value decodes the record at ptr.
func (d *Decoder) Value(ptr uint32) (values.Value, error) {
	raw, err := d.mem.LoadU8(ptr)
	if err != nil {
		return nil, err
	}
	kind := values.Kind(raw)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d at %d", ErrUnknownDiscriminant, raw, ptr)
	}

	payload := ptr + payloadOffset
	switch kind {
	case values.KindList:
		elem, err := d.element(ptr)
		if err != nil {
			return nil, err
		}
		data, n, err := d.pair(payload)
		if err != nil {
			return nil, err
		}
		items, err := d.list(elem, data, n)
		if err != nil {
			return nil, err
		}
		return values.NewList(elem, items)
	case values.KindOption:
		elem, err := d.element(ptr)
		if err != nil {
			return nil, err
		}
		flag, err := d.mem.LoadU8(payload)
		if err != nil {
			return nil, err
		}
		switch flag {
		case 0:
			return values.NewOption(elem, nil)
		case 1:
			item, err := d.scalar(elem, payload+optionItemOffset(elem))
			if err != nil {
				return nil, err
			}
			return values.NewOption(elem, item)
		default:
			return nil, fmt.Errorf("%w: %d at %d", ErrMalformedFlag, flag, payload)
		}
	default:
		return d.scalar(kind, payload)
	}
}

// OptionValue reads a presence byte at ptr and, when set, the record at ptr+8.
func (d *Decoder) OptionValue(ptr uint32) (values.Value, bool, error) {
	flag, err := d.mem.LoadU8(ptr)
	if err != nil {
		return nil, false, err
	}
	switch flag {
	case 0:
		return nil, false, nil
	case 1:
		v, err := d.Value(ptr + 8)
		return v, err == nil, err
	default:
		return nil, false, fmt.Errorf("%w: %d at %d", ErrMalformedFlag, flag, ptr)
	}
}

func (d *Decoder) element(ptr uint32) (values.Kind, error) {
	raw, err := d.mem.LoadU8(ptr + 1)
	if err != nil {
		return 0, err
	}
	elem := values.Kind(raw)
	if !elem.IsElement() {
		return 0, fmt.Errorf("%w: %d at %d", ErrUnknownElement, raw, ptr+1)
	}
	return elem, nil
}

func (d *Decoder) list(elem values.Kind, ptr, n uint32) ([]values.Scalar, error) {
	size, _ := ElementLayout(elem)
	if err := d.span(ptr, n, size); err != nil {
		return nil, err
	}
	items := make([]values.Scalar, n)
	for i := uint32(0); i < n; i++ {
		item, err := d.scalar(elem, ptr+i*size)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

func (d *Decoder) scalar(kind values.Kind, ptr uint32) (values.Scalar, error) {
	m := d.mem
	switch kind {
	case values.KindEmpty:
		return values.Empty{}, nil
	case values.KindBool:
		b, err := m.LoadU8(ptr)
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, fmt.Errorf("%w: %d at %d", ErrMalformedBool, b, ptr)
		}
		return values.Bool(b == 1), nil
	case values.KindI32:
		v, err := m.LoadU32(ptr)
		return values.I32(int32(v)), err
	case values.KindU32:
		v, err := m.LoadU32(ptr)
		return values.U32(v), err
	case values.KindU64:
		v, err := m.LoadU64(ptr)
		return values.U64(v), err
	case values.KindF32:
		v, err := m.LoadF32(ptr)
		return values.F32(v), err
	case values.KindF64:
		v, err := m.LoadF64(ptr)
		return values.F64(v), err
	case values.KindString:
		s, err := d.stringAt(ptr)
		return values.String(s), err
	case values.KindEntityRef:
		id, err := d.EntityIDAt(ptr)
		return values.Ref(id), err
	case values.KindVec2:
		var v values.Vec2
		err := m.LoadF32s(ptr, v[:])
		return v, err
	case values.KindVec3:
		var v values.Vec3
		err := m.LoadF32s(ptr, v[:])
		return v, err
	case values.KindVec4:
		var v values.Vec4
		err := m.LoadF32s(ptr, v[:])
		return v, err
	case values.KindQuat:
		var v values.Quat
		err := m.LoadF32s(ptr, v[:])
		return v, err
	case values.KindMat4:
		var v values.Mat4
		for col := range v {
			if err := m.LoadF32s(ptr+uint32(col)*16, v[col][:]); err != nil {
				return nil, err
			}
		}
		return v, nil
	case values.KindObjectRef:
		s, err := d.stringAt(ptr)
		return values.ObjectRef{ID: s}, err
	default:
		return nil, fmt.Errorf("%w: %d at %d", ErrUnknownDiscriminant, kind, ptr)
	}
}

func (d *Decoder) stringAt(at uint32) (string, error) {
	ptr, n, err := d.pair(at)
	if err != nil {
		return "", err
	}
	return d.String(ptr, n)
}

// String copies the n bytes at ptr.
func (d *Decoder) String(ptr, n uint32) (string, error) {
	if err := d.span(ptr, n, 1); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b, err := d.mem.Bytes(ptr, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EntityIDAt reads id0, id1 at ptr.
func (d *Decoder) EntityIDAt(ptr uint32) (models.EntityID, error) {
	id0, err := d.mem.LoadU64(ptr)
	if err != nil {
		return models.NullEntity, err
	}
	id1, err := d.mem.LoadU64(ptr + 8)
	if err != nil {
		return models.NullEntity, err
	}
	return models.EntityID{ID0: id0, ID1: id1}, nil
}

// ComponentSet decodes n entries at ptr. A repeated index is a violation.
func (d *Decoder) ComponentSet(ptr, n uint32) (values.ComponentSet, error) {
	if err := d.span(ptr, n, EntrySize); err != nil {
		return nil, err
	}
	set := make(values.ComponentSet, 0, n)
	seen := make(map[models.ComponentIndex]struct{}, n)
	for i := uint32(0); i < n; i++ {
		at := ptr + i*EntrySize
		raw, err := d.mem.LoadU32(at)
		if err != nil {
			return nil, err
		}
		idx := models.ComponentIndex(raw)
		if _, dup := seen[idx]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateEntry, idx)
		}
		seen[idx] = struct{}{}

		v, err := d.Value(at + entryValueOffset)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", idx, err)
		}
		set = append(set, values.Entry{Index: idx, Value: v})
	}
	return set, nil
}

// Indices decodes n component indices at ptr.
func (d *Decoder) Indices(ptr, n uint32) ([]models.ComponentIndex, error) {
	if err := d.span(ptr, n, IndexSize); err != nil {
		return nil, err
	}
	out := make([]models.ComponentIndex, n)
	for i := range out {
		v, err := d.mem.LoadU32(ptr + uint32(i)*IndexSize)
		if err != nil {
			return nil, err
		}
		out[i] = models.ComponentIndex(v)
	}
	return out, nil
}

// EntityIDs decodes n entity ids at ptr.
func (d *Decoder) EntityIDs(ptr, n uint32) ([]models.EntityID, error) {
	if err := d.span(ptr, n, EntityIDSize); err != nil {
		return nil, err
	}
	out := make([]models.EntityID, n)
	for i := range out {
		id, err := d.EntityIDAt(ptr + uint32(i)*EntityIDSize)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// Rows decodes n query rows at ptr.
func (d *Decoder) Rows(ptr, n uint32) ([]Row, error) {
	if err := d.span(ptr, n, RowSize); err != nil {
		return nil, err
	}
	rows := make([]Row, n)
	for i := range rows {
		at := ptr + uint32(i)*RowSize
		id, err := d.EntityIDAt(at)
		if err != nil {
			return nil, err
		}
		data, count, err := d.pair(at + 16)
		if err != nil {
			return nil, err
		}
		vs, err := d.valueArray(data, count)
		if err != nil {
			return nil, err
		}
		rows[i] = Row{Entity: id, Values: vs}
	}
	return rows, nil
}

func (d *Decoder) valueArray(ptr, n uint32) ([]values.Value, error) {
	if err := d.span(ptr, n, ValueSize); err != nil {
		return nil, err
	}
	out := make([]values.Value, n)
	for i := range out {
		v, err := d.Value(ptr + uint32(i)*ValueSize)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Hits decodes n raycast hits at ptr.
func (d *Decoder) Hits(ptr, n uint32) ([]Hit, error) {
	if err := d.span(ptr, n, HitSize); err != nil {
		return nil, err
	}
	hits := make([]Hit, n)
	for i := range hits {
		at := ptr + uint32(i)*HitSize
		id, err := d.EntityIDAt(at)
		if err != nil {
			return nil, err
		}
		dist, err := d.mem.LoadF32(at + 16)
		if err != nil {
			return nil, err
		}
		hits[i] = Hit{Entity: id, Distance: dist}
	}
	return hits, nil
}
