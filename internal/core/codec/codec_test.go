package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

func newInstance() *abi.Instance {
	return abi.NewInstance(abi.DefaultConfig())
}

func sampleScalars() []values.Scalar {
	id := models.NewEntityID()
	return []values.Scalar{
		values.Empty{},
		values.Bool(true),
		values.I32(-42),
		values.U32(42),
		values.U64(1 << 60),
		values.F32(3.5),
		values.F64(-2.25),
		values.String("héllo"),
		values.Ref(id),
		values.Vec2{1, 2},
		values.Vec3{1, 2, 3},
		values.Vec4{1, 2, 3, 4},
		values.IdentityQuat,
		values.IdentityMat4,
		values.ObjectRef{ID: "models/orc.glb"},
	}
}

func roundTrip(t *testing.T, v values.Value) values.Value {
	t.Helper()
	inst := newInstance()
	ptr, err := NewEncoder(inst.Memory(), inst).Value(v)
	require.NoError(t, err)
	got, err := NewDecoder(inst.Memory()).Value(ptr)
	require.NoError(t, err)
	return got
}

func TestRoundTrip(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		for _, s := range sampleScalars() {
			t.Run(s.Kind().String(), func(t *testing.T) {
				assert.Equal(t, values.Value(s), roundTrip(t, s))
			})
		}
	})

	t.Run("Lists of every element kind", func(t *testing.T) {
		for _, s := range sampleScalars() {
			if !s.Kind().IsElement() {
				continue
			}
			t.Run(s.Kind().String(), func(t *testing.T) {
				full, err := values.NewList(s.Kind(), []values.Scalar{s, s, s})
				require.NoError(t, err)
				assert.Equal(t, values.Value(full), roundTrip(t, full))

				empty, err := values.NewList(s.Kind(), nil)
				require.NoError(t, err)
				got := roundTrip(t, empty)
				assert.True(t, values.Equal(empty, got))
				assert.Equal(t, empty.Type(), got.Type())
			})
		}
	})

	t.Run("Options of every element kind", func(t *testing.T) {
		for _, s := range sampleScalars() {
			if !s.Kind().IsElement() {
				continue
			}
			t.Run(s.Kind().String(), func(t *testing.T) {
				some, err := values.NewOption(s.Kind(), s)
				require.NoError(t, err)
				assert.Equal(t, values.Value(some), roundTrip(t, some))

				none, err := values.NewOption(s.Kind(), nil)
				require.NoError(t, err)
				assert.Equal(t, values.Value(none), roundTrip(t, none))
			})
		}
	})

	t.Run("Typed containers", func(t *testing.T) {
		names := values.List[values.String]{"a", "", "ccc"}
		assert.Equal(t, values.Value(names), roundTrip(t, names))

		pos := values.Some(values.Vec3{0, 1, 0})
		assert.Equal(t, values.Value(pos), roundTrip(t, pos))
	})
}

func TestLayout(t *testing.T) {
	inst := newInstance()
	mem := inst.Memory()
	enc := NewEncoder(mem, inst)

	t.Run("Option element alignment", func(t *testing.T) {
		ptr, err := enc.Value(values.Some(values.U64(7)))
		require.NoError(t, err)

		kind, _ := mem.LoadU8(ptr)
		elem, _ := mem.LoadU8(ptr + 1)
		flag, _ := mem.LoadU8(ptr + 8)
		item, _ := mem.LoadU64(ptr + 16)
		assert.Equal(t, uint8(values.KindOption), kind)
		assert.Equal(t, uint8(values.KindU64), elem)
		assert.Equal(t, uint8(1), flag)
		assert.Equal(t, uint64(7), item)
	})

	t.Run("Absent option keeps element discriminant", func(t *testing.T) {
		ptr, err := enc.Value(values.None[values.String]())
		require.NoError(t, err)
		elem, _ := mem.LoadU8(ptr + 1)
		flag, _ := mem.LoadU8(ptr + 8)
		assert.Equal(t, uint8(values.KindString), elem)
		assert.Zero(t, flag)
	})

	t.Run("List of strings points at separate buffers", func(t *testing.T) {
		ptr, err := enc.Value(values.List[values.String]{"ab", "cde"})
		require.NoError(t, err)
		data, n, err := NewDecoder(mem).Pair(ptr + 8)
		require.NoError(t, err)
		require.Equal(t, uint32(2), n)

		p0, n0, _ := NewDecoder(mem).Pair(data)
		p1, n1, _ := NewDecoder(mem).Pair(data + 8)
		assert.Equal(t, uint32(2), n0)
		assert.Equal(t, uint32(3), n1)
		assert.NotEqual(t, p0, p1)
	})

	t.Run("Element layouts", func(t *testing.T) {
		size, align := ElementLayout(values.KindEntityRef)
		assert.Equal(t, [2]uint32{16, 8}, [2]uint32{size, align})
		size, align = ElementLayout(values.KindMat4)
		assert.Equal(t, [2]uint32{64, 4}, [2]uint32{size, align})
		assert.Equal(t, uint32(88), EntrySize)
	})
}

func TestDiscriminants(t *testing.T) {
	inst := newInstance()
	mem := inst.Memory()
	ptr, err := inst.Alloc(ValueSize, ValueAlign)
	require.NoError(t, err)

	for b := 0; b < 256; b++ {
		require.NoError(t, mem.Zero(ptr, ValueSize))
		require.NoError(t, mem.StoreU8(ptr, uint8(b)))
		if b == int(values.KindList) || b == int(values.KindOption) {
			require.NoError(t, mem.StoreU8(ptr+1, uint8(values.KindBool)))
		}

		v, err := NewDecoder(mem).Value(ptr)
		if b <= int(values.KindOption) {
			require.NoError(t, err, "discriminant %d", b)
			assert.Equal(t, values.Kind(b), v.Kind())
			continue
		}
		require.ErrorIs(t, err, ErrUnknownDiscriminant, "discriminant %d", b)
		assert.True(t, abi.IsViolation(err))
		assert.Nil(t, v)
	}
}

func TestMalformed(t *testing.T) {
	inst := newInstance()
	mem := inst.Memory()
	enc := NewEncoder(mem, inst)

	t.Run("Container element outside the scalar kinds", func(t *testing.T) {
		for _, elem := range []uint8{0, 15, 16, 99} {
			ptr, err := enc.Value(values.List[values.F32]{})
			require.NoError(t, err)
			require.NoError(t, mem.StoreU8(ptr+1, elem))
			_, err = NewDecoder(mem).Value(ptr)
			require.ErrorIs(t, err, ErrUnknownElement)
		}
	})

	t.Run("Bool byte", func(t *testing.T) {
		ptr, err := enc.Value(values.Bool(true))
		require.NoError(t, err)
		require.NoError(t, mem.StoreU8(ptr+8, 2))
		_, err = NewDecoder(mem).Value(ptr)
		require.ErrorIs(t, err, ErrMalformedBool)
	})

	t.Run("Presence flag", func(t *testing.T) {
		ptr, err := enc.Value(values.Some(values.I32(1)))
		require.NoError(t, err)
		require.NoError(t, mem.StoreU8(ptr+8, 7))
		_, err = NewDecoder(mem).Value(ptr)
		require.ErrorIs(t, err, ErrMalformedFlag)

		require.NoError(t, mem.StoreU8(abi.ReturnAreaPtr, 3))
		_, _, err = NewDecoder(mem).OptionValue(abi.ReturnAreaPtr)
		require.ErrorIs(t, err, ErrMalformedFlag)
	})

	t.Run("Buffer out of bounds", func(t *testing.T) {
		ptr, err := enc.Value(values.String("abc"))
		require.NoError(t, err)
		require.NoError(t, mem.StoreU32(ptr+12, mem.Size()))
		_, err = NewDecoder(mem).Value(ptr)
		require.ErrorIs(t, err, abi.ErrOutOfBounds)

		_, err = NewDecoder(mem).Value(mem.Size())
		require.ErrorIs(t, err, abi.ErrOutOfBounds)
	})

	t.Run("Null buffer with length", func(t *testing.T) {
		ptr, err := enc.Value(values.String("abc"))
		require.NoError(t, err)
		require.NoError(t, mem.StoreU32(ptr+8, 0))
		_, err = NewDecoder(mem).Value(ptr)
		require.ErrorIs(t, err, abi.ErrNullPointer)
	})

	t.Run("Huge list length", func(t *testing.T) {
		ptr, err := enc.Value(values.List[values.Mat4]{values.IdentityMat4})
		require.NoError(t, err)
		require.NoError(t, mem.StoreU32(ptr+12, 1<<30))
		_, err = NewDecoder(mem).Value(ptr)
		require.ErrorIs(t, err, abi.ErrOutOfBounds)
	})

	t.Run("Duplicate set entry", func(t *testing.T) {
		ptr, n, err := enc.ComponentSet(values.ComponentSet{
			{Index: 1, Value: values.F32(1)},
			{Index: 2, Value: values.F32(2)},
		})
		require.NoError(t, err)
		require.NoError(t, mem.StoreU32(ptr+EntrySize, 1))
		_, err = NewDecoder(mem).ComponentSet(ptr, n)
		require.ErrorIs(t, err, ErrDuplicateEntry)
		assert.True(t, abi.IsViolation(err))
	})

	t.Run("Nil value", func(t *testing.T) {
		_, err := enc.Value(nil)
		require.ErrorIs(t, err, ErrNilValue)
	})
}

func TestCollections(t *testing.T) {
	inst := newInstance()
	mem := inst.Memory()
	enc := NewEncoder(mem, inst)
	dec := NewDecoder(mem)

	t.Run("Component set", func(t *testing.T) {
		set := values.ComponentSet{
			{Index: 3, Value: values.String("orc")},
			{Index: 0, Value: values.Vec3{1, 2, 3}},
			{Index: 7, Value: values.List[values.U32]{1, 2}},
		}
		ptr, n, err := enc.ComponentSet(set)
		require.NoError(t, err)
		got, err := dec.ComponentSet(ptr, n)
		require.NoError(t, err)
		assert.Equal(t, set, got)

		ptr, n, err = enc.ComponentSet(nil)
		require.NoError(t, err)
		assert.Zero(t, ptr)
		got, err = dec.ComponentSet(ptr, n)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Indices and entity ids", func(t *testing.T) {
		indices := []models.ComponentIndex{4, 1, 9}
		ptr, n, err := enc.Indices(indices)
		require.NoError(t, err)
		gotIdx, err := dec.Indices(ptr, n)
		require.NoError(t, err)
		assert.Equal(t, indices, gotIdx)

		ids := []models.EntityID{models.NewEntityID(), models.NewEntityID()}
		ptr, n, err = enc.EntityIDs(ids)
		require.NoError(t, err)
		gotIDs, err := dec.EntityIDs(ptr, n)
		require.NoError(t, err)
		assert.Equal(t, ids, gotIDs)
	})

	t.Run("Rows", func(t *testing.T) {
		rows := []Row{
			{Entity: models.NewEntityID(), Values: []values.Value{values.F32(1), values.String("a")}},
			{Entity: models.NewEntityID(), Values: []values.Value{}},
		}
		ptr, n, err := enc.Rows(rows)
		require.NoError(t, err)
		got, err := dec.Rows(ptr, n)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	t.Run("Hits", func(t *testing.T) {
		hits := []Hit{{Entity: models.NewEntityID(), Distance: 4.5}}
		ptr, n, err := enc.Hits(hits)
		require.NoError(t, err)
		got, err := dec.Hits(ptr, n)
		require.NoError(t, err)
		assert.Equal(t, hits, got)
	})

	t.Run("Option value in the return area", func(t *testing.T) {
		area := inst.ReturnArea()
		require.NoError(t, enc.PutOptionValue(area, values.U32(9)))
		v, ok, err := dec.OptionValue(area)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, values.Value(values.U32(9)), v)

		require.NoError(t, enc.PutOptionValue(inst.ReturnArea(), nil))
		_, ok, err = dec.OptionValue(area)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBufferHook(t *testing.T) {
	inst := newInstance()
	scope := inst.Begin()
	enc := NewEncoder(inst.Memory(), scope)

	v := values.List[values.String]{"left", "right"}
	ptr, err := enc.Value(v)
	require.NoError(t, err)
	// record + list array + two strings
	require.Equal(t, 4, scope.Owned())

	var seen []uint32
	got, err := NewDecoder(inst.Memory(), WithBufferHook(func(p uint32) {
		seen = append(seen, p)
	})).Value(ptr)
	require.NoError(t, err)
	assert.Equal(t, values.Value(v), got)
	assert.Len(t, seen, 3)

	require.NoError(t, scope.Release())
	assert.Zero(t, inst.Live())
}

// marshalImage encodes v into a standalone memory image with the value record
// at abi.HeapBase and every out-of-line buffer after it.
func marshalImage(t *testing.T, v values.Value) []byte {
	t.Helper()
	inst := newInstance()
	ptr, err := NewEncoder(inst.Memory(), inst).Value(v)
	require.NoError(t, err)
	require.Equal(t, abi.HeapBase, ptr)
	img, err := inst.Memory().Bytes(0, inst.Top())
	require.NoError(t, err)
	return append([]byte(nil), img...)
}

func unmarshalImage(img []byte) (values.Value, error) {
	if uint64(len(img)) < uint64(abi.HeapBase)+uint64(ValueSize) {
		return nil, &abi.AccessError{Ptr: abi.HeapBase, Size: ValueSize, Mem: uint32(len(img))}
	}
	mem := abi.NewMemory(uint32(len(img)), 0)
	if err := mem.Write(0, img); err != nil {
		return nil, err
	}
	return NewDecoder(mem).Value(abi.HeapBase)
}

func TestImage(t *testing.T) {
	for _, v := range []values.Value{
		values.String("standalone"),
		values.List[values.ObjectRef]{{ID: "a"}, {ID: "b"}},
		values.Some(values.Mat4(values.IdentityMat4)),
	} {
		got, err := unmarshalImage(marshalImage(t, v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	t.Run("Truncated image", func(t *testing.T) {
		img := marshalImage(t, values.F32(1))
		_, err := unmarshalImage(img[:abi.HeapBase+ValueSize-1])
		require.ErrorIs(t, err, abi.ErrOutOfBounds)
		_, err = unmarshalImage([]byte{1, 2, 3})
		require.ErrorIs(t, err, abi.ErrOutOfBounds)
	})
}
