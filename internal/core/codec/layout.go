// Package codec encodes component values into a guest's linear memory and
// decodes them back. Every record has a fixed size; variable-length payloads
// (strings, lists) live in separate buffers referenced by (ptr, len) pairs.
//
// Value record (80 bytes, align 8):
//
//	[0]     discriminant
//	[1]     element discriminant (list and option only)
//	[8..80) payload
//
// A list payload is (ptr u32, len u32) pointing at len contiguous elements.
// An option payload is a presence byte followed, when present, by the element
// at the next offset aligned for that element.
package codec

import (
	"errors"
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Row is the record form of a query row.
type Row struct {
	Entity models.EntityID
	Values []values.Value
}

// Hit is the record form of a raycast hit.
type Hit struct {
	Entity   models.EntityID
	Distance float32
}

const (
	ValueSize  uint32 = 80
	ValueAlign uint32 = 8

	// EntrySize is one ComponentSet entry: index u32 then a value record at +8.
	EntrySize uint32 = 8 + ValueSize
	// RowSize is one query row: id0, id1, values ptr, values len.
	RowSize uint32 = 24
	// HitSize is one raycast hit: id0, id1, distance f32.
	HitSize      uint32 = 24
	IndexSize    uint32 = 4
	EntityIDSize uint32 = 16
	// OptionValueSize is a presence byte and a value record at +8, as written
	// to the return area for optional results.
	OptionValueSize uint32 = 8 + ValueSize

	payloadOffset    uint32 = 8
	entryValueOffset uint32 = 8
)

var (
	ErrUnknownDiscriminant = fmt.Errorf("%w: unknown value discriminant", abi.ErrProtocolViolation)
	ErrUnknownElement      = fmt.Errorf("%w: container element is not a scalar kind", abi.ErrProtocolViolation)
	ErrMalformedBool       = fmt.Errorf("%w: bool byte is neither 0 nor 1", abi.ErrProtocolViolation)
	ErrMalformedFlag       = fmt.Errorf("%w: presence flag is neither 0 nor 1", abi.ErrProtocolViolation)
	ErrDuplicateEntry      = fmt.Errorf("%w: duplicate component index in set", abi.ErrProtocolViolation)
	ErrNilValue            = errors.New("cannot encode a nil value")
)

// ElementLayout returns the inline size and alignment of one element of kind k.
func ElementLayout(k values.Kind) (size, align uint32) {
	switch k {
	case values.KindEmpty:
		return 0, 1
	case values.KindBool:
		return 1, 1
	case values.KindI32, values.KindU32, values.KindF32:
		return 4, 4
	case values.KindU64, values.KindF64:
		return 8, 8
	case values.KindString, values.KindObjectRef:
		return 8, 4
	case values.KindEntityRef:
		return 16, 8
	case values.KindVec2:
		return 8, 4
	case values.KindVec3:
		return 12, 4
	case values.KindVec4, values.KindQuat:
		return 16, 4
	case values.KindMat4:
		return 64, 4
	default:
		return 0, 1
	}
}

// optionItemOffset is where the element of an option starts within the payload.
func optionItemOffset(elem values.Kind) uint32 {
	_, align := ElementLayout(elem)
	return abi.AlignUp(1, align)
}
