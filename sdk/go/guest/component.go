package guest

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Component is a typed accessor for one registered component.
type Component[V values.Value] struct {
	Name  string
	Index models.ComponentIndex
}

// Lookup resolves name on the host. It is false for an unregistered name.
func Lookup[V values.Value](g *Guest, name string) (Component[V], bool) {
	idx, ok := g.ComponentIndex(name)
	if !ok {
		return Component[V]{}, false
	}
	return Component[V]{Name: name, Index: idx}, true
}

// MustLookup is Lookup that traps when name is unknown to the host.
func MustLookup[V values.Value](g *Guest, name string) Component[V] {
	c, ok := Lookup[V](g, name)
	if !ok {
		abi.Raise("component_get_index", fmt.Errorf("component %q is not registered", name))
	}
	return c
}

// Get returns the value on id. A stored value of another type traps.
func (c Component[V]) Get(g *Guest, id models.EntityID) (V, bool) {
	var zero V
	v, ok := g.Get(id, c.Index)
	if !ok {
		return zero, false
	}
	typed, ok := v.(V)
	if !ok {
		abi.Raise("entity_get_component", fmt.Errorf("component %s holds %s, want %T", c.Name, v.Type(), zero))
	}
	return typed, true
}

func (c Component[V]) Set(g *Guest, id models.EntityID, v V) bool {
	return g.Set(id, c.Index, v)
}

func (c Component[V]) Add(g *Guest, id models.EntityID, v V) bool {
	return g.Add(id, c.Index, v)
}

func (c Component[V]) Remove(g *Guest, id models.EntityID) bool {
	return g.Remove(id, c.Index)
}

func (c Component[V]) Has(g *Guest, id models.EntityID) bool {
	return g.Has(id, c.Index)
}

// Entry pairs v with the component index for building a ComponentSet.
func (c Component[V]) Entry(v V) values.Entry {
	return values.Entry{Index: c.Index, Value: v}
}

// Of extracts the value at position i of a query row projection.
func Of[V values.Value](vals []values.Value, i int) (V, bool) {
	var zero V
	if i < 0 || i >= len(vals) {
		return zero, false
	}
	v, ok := vals[i].(V)
	return v, ok
}
