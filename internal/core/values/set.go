package values

import (
	"errors"
	"fmt"

	"github.com/zeusync/worldcore/internal/core/models"
)

var ErrDuplicateIndex = errors.New("duplicate component index in set")

// Entry is one (index, value) pair of a ComponentSet.
type Entry struct {
	Index models.ComponentIndex
	Value Value
}

// ComponentSet is an ordered batch of component values with unique indices.
type ComponentSet []Entry

// NewComponentSet builds a set from entries, failing on a repeated index.
func NewComponentSet(entries ...Entry) (ComponentSet, error) {
	set := make(ComponentSet, 0, len(entries))
	for _, e := range entries {
		if set.Has(e.Index) {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateIndex, e.Index)
		}
		set = append(set, e)
	}
	return set, nil
}

// With returns the set with idx bound to v, replacing an existing entry in place.
func (s ComponentSet) With(idx models.ComponentIndex, v Value) ComponentSet {
	for i := range s {
		if s[i].Index == idx {
			s[i].Value = v
			return s
		}
	}
	return append(s, Entry{Index: idx, Value: v})
}

func (s ComponentSet) Get(idx models.ComponentIndex) (Value, bool) {
	for _, e := range s {
		if e.Index == idx {
			return e.Value, true
		}
	}
	return nil, false
}

func (s ComponentSet) Has(idx models.ComponentIndex) bool {
	_, ok := s.Get(idx)
	return ok
}

// Indices returns the indices in set order.
func (s ComponentSet) Indices() []models.ComponentIndex {
	out := make([]models.ComponentIndex, len(s))
	for i, e := range s {
		out[i] = e.Index
	}
	return out
}

// Validate checks index uniqueness and that no value is nil.
func (s ComponentSet) Validate() error {
	seen := make(map[models.ComponentIndex]struct{}, len(s))
	for _, e := range s {
		if e.Value == nil {
			return fmt.Errorf("%w: nil value for component %d", ErrInvalidType, e.Index)
		}
		if _, dup := seen[e.Index]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, e.Index)
		}
		seen[e.Index] = struct{}{}
	}
	return nil
}

// Clone copies the entry slice; values are shared.
func (s ComponentSet) Clone() ComponentSet {
	if s == nil {
		return nil
	}
	out := make(ComponentSet, len(s))
	copy(out, s)
	return out
}
