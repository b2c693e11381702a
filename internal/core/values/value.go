// Package values defines the component value type system shared by the host
// and guest sides of the boundary.
//
// Value is a closed sum type: the scalar kinds are distinct Go types, and the
// two containers are generic over the Element constraint, so a list of lists
// or a heterogeneous list cannot be constructed in the first place.
package values

import (
	"reflect"

	"github.com/zeusync/worldcore/internal/core/models"
)

// Value is any component value.
type Value interface {
	Kind() Kind
	Type() Type
	isValue()
}

// Scalar is a non-container Value.
type Scalar interface {
	Value
	isScalar()
}

// Element is the set of scalar types that may be wrapped by List or Option.
type Element interface {
	Bool | I32 | U32 | U64 | F32 | F64 | String | EntityRef | Vec2 | Vec3 | Vec4 | Quat | Mat4 | ObjectRef
	Scalar
}

type (
	Empty     struct{}
	Bool      bool
	I32       int32
	U32       uint32
	U64       uint64
	F32       float32
	F64       float64
	String    string
	EntityRef models.EntityID
	Vec2      [2]float32
	Vec3      [3]float32
	Vec4      [4]float32
	// Quat is stored as x, y, z, w.
	Quat [4]float32
	// Mat4 is four float4 columns.
	Mat4 [4][4]float32
)

// ObjectRef is a string-keyed handle to an external asset.
type ObjectRef struct {
	ID string
}

func (Empty) Kind() Kind     { return KindEmpty }
func (Bool) Kind() Kind      { return KindBool }
func (I32) Kind() Kind       { return KindI32 }
func (U32) Kind() Kind       { return KindU32 }
func (U64) Kind() Kind       { return KindU64 }
func (F32) Kind() Kind       { return KindF32 }
func (F64) Kind() Kind       { return KindF64 }
func (String) Kind() Kind    { return KindString }
func (EntityRef) Kind() Kind { return KindEntityRef }
func (Vec2) Kind() Kind      { return KindVec2 }
func (Vec3) Kind() Kind      { return KindVec3 }
func (Vec4) Kind() Kind      { return KindVec4 }
func (Quat) Kind() Kind      { return KindQuat }
func (Mat4) Kind() Kind      { return KindMat4 }
func (ObjectRef) Kind() Kind { return KindObjectRef }

func (v Empty) Type() Type     { return ScalarType(v.Kind()) }
func (v Bool) Type() Type      { return ScalarType(v.Kind()) }
func (v I32) Type() Type       { return ScalarType(v.Kind()) }
func (v U32) Type() Type       { return ScalarType(v.Kind()) }
func (v U64) Type() Type       { return ScalarType(v.Kind()) }
func (v F32) Type() Type       { return ScalarType(v.Kind()) }
func (v F64) Type() Type       { return ScalarType(v.Kind()) }
func (v String) Type() Type    { return ScalarType(v.Kind()) }
func (v EntityRef) Type() Type { return ScalarType(v.Kind()) }
func (v Vec2) Type() Type      { return ScalarType(v.Kind()) }
func (v Vec3) Type() Type      { return ScalarType(v.Kind()) }
func (v Vec4) Type() Type      { return ScalarType(v.Kind()) }
func (v Quat) Type() Type      { return ScalarType(v.Kind()) }
func (v Mat4) Type() Type      { return ScalarType(v.Kind()) }
func (v ObjectRef) Type() Type { return ScalarType(v.Kind()) }

func (Empty) isValue()     {}
func (Bool) isValue()      {}
func (I32) isValue()       {}
func (U32) isValue()       {}
func (U64) isValue()       {}
func (F32) isValue()       {}
func (F64) isValue()       {}
func (String) isValue()    {}
func (EntityRef) isValue() {}
func (Vec2) isValue()      {}
func (Vec3) isValue()      {}
func (Vec4) isValue()      {}
func (Quat) isValue()      {}
func (Mat4) isValue()      {}
func (ObjectRef) isValue() {}

func (Empty) isScalar()     {}
func (Bool) isScalar()      {}
func (I32) isScalar()       {}
func (U32) isScalar()       {}
func (U64) isScalar()       {}
func (F32) isScalar()       {}
func (F64) isScalar()       {}
func (String) isScalar()    {}
func (EntityRef) isScalar() {}
func (Vec2) isScalar()      {}
func (Vec3) isScalar()      {}
func (Vec4) isScalar()      {}
func (Quat) isScalar()      {}
func (Mat4) isScalar()      {}
func (ObjectRef) isScalar() {}

// Entity returns the referenced entity id.
func (v EntityRef) Entity() models.EntityID {
	return models.EntityID(v)
}

// Ref wraps an entity id as a value.
func Ref(id models.EntityID) EntityRef {
	return EntityRef(id)
}

// IdentityQuat is the rotation that leaves vectors unchanged.
var IdentityQuat = Quat{0, 0, 0, 1}

// IdentityMat4 is the 4x4 identity matrix.
var IdentityMat4 = Mat4{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
	{0, 0, 0, 1},
}

// Equal reports whether a and b hold the same kind and payload.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	if la, ok := a.(ListValue); ok {
		lb := b.(ListValue)
		if la.Len() != lb.Len() {
			return false
		}
		for i := 0; i < la.Len(); i++ {
			if !reflect.DeepEqual(la.At(i), lb.At(i)) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Zero returns the zero value of t. Options are absent, lists are empty.
func Zero(t Type) (Value, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindList:
		return NewList(t.Elem, nil)
	case KindOption:
		return NewOption(t.Elem, nil)
	default:
		return zeroScalar(t.Kind), nil
	}
}

func zeroScalar(k Kind) Scalar {
	switch k {
	case KindBool:
		return Bool(false)
	case KindI32:
		return I32(0)
	case KindU32:
		return U32(0)
	case KindU64:
		return U64(0)
	case KindF32:
		return F32(0)
	case KindF64:
		return F64(0)
	case KindString:
		return String("")
	case KindEntityRef:
		return EntityRef{}
	case KindVec2:
		return Vec2{}
	case KindVec3:
		return Vec3{}
	case KindVec4:
		return Vec4{}
	case KindQuat:
		return IdentityQuat
	case KindMat4:
		return IdentityMat4
	case KindObjectRef:
		return ObjectRef{}
	default:
		return Empty{}
	}
}
