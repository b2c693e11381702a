package values

import (
	"errors"
	"fmt"
)

var ErrHeterogeneousList = errors.New("list element does not match list kind")

// List is a homogeneous sequence of one element kind.
type List[T Element] []T

// Option is an optional element. The zero value is absent.
type Option[T Element] struct {
	Value   T
	Present bool
}

// Some wraps v as a present option.
func Some[T Element](v T) Option[T] {
	return Option[T]{Value: v, Present: true}
}

// None returns the absent option of T.
func None[T Element]() Option[T] {
	return Option[T]{}
}

// ListValue is implemented by every List instantiation.
type ListValue interface {
	Value
	Elem() Kind
	Len() int
	At(i int) Scalar
}

// OptionValue is implemented by every Option instantiation.
type OptionValue interface {
	Value
	Elem() Kind
	Get() (Scalar, bool)
}

func (List[T]) Kind() Kind { return KindList }

func (List[T]) Elem() Kind {
	var zero T
	return zero.Kind()
}

func (l List[T]) Type() Type      { return ListType(l.Elem()) }
func (l List[T]) Len() int        { return len(l) }
func (l List[T]) At(i int) Scalar { return l[i] }
func (List[T]) isValue()          {}

func (Option[T]) Kind() Kind { return KindOption }

func (Option[T]) Elem() Kind {
	var zero T
	return zero.Kind()
}

func (o Option[T]) Type() Type { return OptionType(o.Elem()) }

func (o Option[T]) Get() (Scalar, bool) {
	if !o.Present {
		return nil, false
	}
	return o.Value, true
}

func (Option[T]) isValue() {}

// NewList builds a List of elem from untyped items. Every item must be of
// exactly the elem kind.
func NewList(elem Kind, items []Scalar) (ListValue, error) {
	switch elem {
	case KindBool:
		return listOf[Bool](items)
	case KindI32:
		return listOf[I32](items)
	case KindU32:
		return listOf[U32](items)
	case KindU64:
		return listOf[U64](items)
	case KindF32:
		return listOf[F32](items)
	case KindF64:
		return listOf[F64](items)
	case KindString:
		return listOf[String](items)
	case KindEntityRef:
		return listOf[EntityRef](items)
	case KindVec2:
		return listOf[Vec2](items)
	case KindVec3:
		return listOf[Vec3](items)
	case KindVec4:
		return listOf[Vec4](items)
	case KindQuat:
		return listOf[Quat](items)
	case KindMat4:
		return listOf[Mat4](items)
	case KindObjectRef:
		return listOf[ObjectRef](items)
	default:
		return nil, fmt.Errorf("%w: list of %s", ErrInvalidType, elem)
	}
}

// NewOption builds an Option of elem. A nil item yields the absent option.
func NewOption(elem Kind, item Scalar) (OptionValue, error) {
	switch elem {
	case KindBool:
		return optionOf[Bool](item)
	case KindI32:
		return optionOf[I32](item)
	case KindU32:
		return optionOf[U32](item)
	case KindU64:
		return optionOf[U64](item)
	case KindF32:
		return optionOf[F32](item)
	case KindF64:
		return optionOf[F64](item)
	case KindString:
		return optionOf[String](item)
	case KindEntityRef:
		return optionOf[EntityRef](item)
	case KindVec2:
		return optionOf[Vec2](item)
	case KindVec3:
		return optionOf[Vec3](item)
	case KindVec4:
		return optionOf[Vec4](item)
	case KindQuat:
		return optionOf[Quat](item)
	case KindMat4:
		return optionOf[Mat4](item)
	case KindObjectRef:
		return optionOf[ObjectRef](item)
	default:
		return nil, fmt.Errorf("%w: option of %s", ErrInvalidType, elem)
	}
}

func listOf[T Element](items []Scalar) (List[T], error) {
	out := make(List[T], len(items))
	for i, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T, want %s", ErrHeterogeneousList, i, item, out.Elem())
		}
		out[i] = v
	}
	return out, nil
}

func optionOf[T Element](item Scalar) (Option[T], error) {
	if item == nil {
		return None[T](), nil
	}
	v, ok := item.(T)
	if !ok {
		var zero Option[T]
		return zero, fmt.Errorf("%w: option item is %T, want %s", ErrInvalidType, item, zero.Elem())
	}
	return Some(v), nil
}
