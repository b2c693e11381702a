// Package query compiles component filters into stateful handles and
// evaluates them against the entity store.
package query

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Event selects what an evaluation reports.
type Event uint8

const (
	// Frame reports every entity matching the filter now.
	Frame Event = iota
	// Spawn reports entities that began matching since the last evaluation.
	Spawn
	// Despawn reports entities that matched last time and no longer do.
	Despawn
)

func (e Event) Valid() bool {
	return e <= Despawn
}

func (e Event) String() string {
	switch e {
	case Frame:
		return "frame"
	case Spawn:
		return "spawn"
	case Despawn:
		return "despawn"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Spec describes a query. Components is the projection, fetched per row in
// the given order.
type Spec struct {
	Components []models.ComponentIndex
	Include    []models.ComponentIndex
	Exclude    []models.ComponentIndex
	Changed    []models.ComponentIndex
	Event      Event
}

// Indices returns every index s mentions, deduplicated.
func (s Spec) Indices() []models.ComponentIndex {
	all := make([]models.ComponentIndex, 0, len(s.Components)+len(s.Include)+len(s.Exclude)+len(s.Changed))
	all = append(all, s.Components...)
	all = append(all, s.Include...)
	all = append(all, s.Exclude...)
	all = append(all, s.Changed...)
	return normalize(all)
}

func (s Spec) normalized() Spec {
	return Spec{
		Components: slices.Clone(s.Components),
		Include:    normalize(s.Include),
		Exclude:    normalize(s.Exclude),
		Changed:    normalize(s.Changed),
		Event:      s.Event,
	}
}

func normalize(in []models.ComponentIndex) []models.ComponentIndex {
	out := slices.Clone(in)
	slices.SortFunc(out, cmp.Compare[models.ComponentIndex])
	return slices.Compact(out)
}

// Handle identifies a compiled query. Zero is never issued.
type Handle uint64

// Row is one matching entity and the projected values it carries. Projected
// components the entity lacks are omitted.
type Row struct {
	Entity models.EntityID
	Values []values.Value
}
