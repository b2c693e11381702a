// Package host implements the entry points a guest module imports. Every
// binding takes flat integer, float and (ptr, len) arguments that point into
// the calling guest's linear memory.
package host

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/assets"
	"github.com/zeusync/worldcore/internal/core/events/bus"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/query"
	"github.com/zeusync/worldcore/internal/core/registry"
	"github.com/zeusync/worldcore/internal/core/store"
	"github.com/zeusync/worldcore/internal/core/systems/physics"
	"github.com/zeusync/worldcore/internal/core/values"
)

// World is the authoritative state shared by every guest instance. Physics and
// Assets are optional; without them raycasts hit nothing and no asset resolves.
type World struct {
	Registry *registry.Registry
	Store    *store.Store
	Queries  *query.Engine
	Physics  *physics.Raycaster
	Assets   *assets.Resolver
	Bus      bus.Bus

	log log.Log
}

func NewWorld(
	reg *registry.Registry,
	st *store.Store,
	queries *query.Engine,
	raycaster *physics.Raycaster,
	resolver *assets.Resolver,
	b bus.Bus,
	l log.Log,
) *World {
	if l == nil {
		l = log.NewNop()
	}
	return &World{
		Registry: reg,
		Store:    st,
		Queries:  queries,
		Physics:  raycaster,
		Assets:   resolver,
		Bus:      b,
		log:      l.Named("host"),
	}
}

// CheckIndex fails for an index the registry never assigned.
func (w *World) CheckIndex(idx models.ComponentIndex) error {
	if _, ok := w.Registry.TypeOf(idx); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownComponent, idx)
	}
	return nil
}

func (w *World) CheckIndices(indices []models.ComponentIndex) error {
	for _, idx := range indices {
		if err := w.CheckIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

// CheckValue fails unless v has the registered type of idx.
func (w *World) CheckValue(idx models.ComponentIndex, v values.Value) error {
	t, ok := w.Registry.TypeOf(idx)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownComponent, idx)
	}
	if v.Type() != t {
		return fmt.Errorf("%w: component %d is %s, got %s", ErrTypeMismatch, idx, t, v.Type())
	}
	return nil
}

// CheckSet validates every entry before anything is applied.
func (w *World) CheckSet(set values.ComponentSet) error {
	for _, e := range set {
		if err := w.CheckValue(e.Index, e.Value); err != nil {
			return err
		}
	}
	return nil
}
