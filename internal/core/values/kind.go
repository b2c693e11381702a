package values

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the discriminant byte written at the head of every encoded value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBool
	KindI32
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindEntityRef
	KindVec2
	KindVec3
	KindVec4
	KindQuat
	KindMat4
	KindObjectRef
	KindList
	KindOption

	// KindCount is the number of valid discriminants.
	KindCount = int(KindOption) + 1
)

var kindNames = [...]string{
	KindEmpty:     "empty",
	KindBool:      "bool",
	KindI32:       "i32",
	KindU32:       "u32",
	KindU64:       "u64",
	KindF32:       "f32",
	KindF64:       "f64",
	KindString:    "string",
	KindEntityRef: "entity",
	KindVec2:      "vec2",
	KindVec3:      "vec3",
	KindVec4:      "vec4",
	KindQuat:      "quat",
	KindMat4:      "mat4",
	KindObjectRef: "object_ref",
	KindList:      "list",
	KindOption:    "option",
}

// Valid reports whether k is one of the known discriminants.
func (k Kind) Valid() bool {
	return int(k) < KindCount
}

// IsScalar reports whether k is a non-container kind.
func (k Kind) IsScalar() bool {
	return k <= KindObjectRef
}

// IsElement reports whether k may appear inside a List or an Option.
func (k Kind) IsElement() bool {
	return k >= KindBool && k <= KindObjectRef
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ElementKinds lists the kinds accepted inside containers, in discriminant order.
func ElementKinds() []Kind {
	kinds := make([]Kind, 0, int(KindObjectRef))
	for k := KindBool; k <= KindObjectRef; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

var (
	ErrInvalidType = errors.New("invalid value type")
	ErrTypeSyntax  = errors.New("malformed type expression")
)

// Type describes the shape of a component value. Elem is only meaningful for
// KindList and KindOption.
type Type struct {
	Kind Kind
	Elem Kind
}

// ScalarType returns the Type of a scalar kind.
func ScalarType(k Kind) Type {
	return Type{Kind: k}
}

// ListType returns the Type of a list of elem.
func ListType(elem Kind) Type {
	return Type{Kind: KindList, Elem: elem}
}

// OptionType returns the Type of an option of elem.
func OptionType(elem Kind) Type {
	return Type{Kind: KindOption, Elem: elem}
}

// Validate checks that the descriptor names a representable type.
func (t Type) Validate() error {
	switch {
	case t.Kind.IsScalar():
		if t.Elem != KindEmpty {
			return fmt.Errorf("%w: scalar %s carries element %s", ErrInvalidType, t.Kind, t.Elem)
		}
		return nil
	case t.Kind == KindList || t.Kind == KindOption:
		if !t.Elem.IsElement() {
			return fmt.Errorf("%w: %s of %s, element must be one of %v", ErrInvalidType, t.Kind, t.Elem, ElementKinds())
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidType, t.Kind)
	}
}

func (t Type) String() string {
	if t.Kind == KindList || t.Kind == KindOption {
		return t.Kind.String() + "<" + t.Elem.String() + ">"
	}
	return t.Kind.String()
}

// ParseType parses the textual form produced by Type.String, e.g. "f32",
// "list<string>" or "option<vec3>".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if open := strings.IndexByte(s, '<'); open >= 0 {
		if !strings.HasSuffix(s, ">") {
			return Type{}, fmt.Errorf("%w: %q", ErrTypeSyntax, s)
		}
		outer, ok := kindByName(s[:open])
		if !ok || (outer != KindList && outer != KindOption) {
			return Type{}, fmt.Errorf("%w: %q is not a container", ErrTypeSyntax, s[:open])
		}
		elem, ok := kindByName(strings.TrimSpace(s[open+1 : len(s)-1]))
		if !ok {
			return Type{}, fmt.Errorf("%w: unknown element in %q", ErrTypeSyntax, s)
		}
		t := Type{Kind: outer, Elem: elem}
		return t, t.Validate()
	}

	k, ok := kindByName(s)
	if !ok {
		return Type{}, fmt.Errorf("%w: unknown kind %q", ErrTypeSyntax, s)
	}
	t := Type{Kind: k}
	return t, t.Validate()
}

func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}
