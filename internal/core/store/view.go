package store

import (
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

// View reads the store under its read lock. It is only valid inside the
// callback passed to Store.View.
type View struct {
	s *Store
}

// View runs fn against a consistent snapshot of the store.
func (s *Store) View(fn func(v View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(View{s: s})
}

func (v View) Version() uint64 {
	return v.s.version
}

func (v View) Exists(id models.EntityID) bool {
	_, ok := v.s.entities[id]
	return ok
}

// Count is the number of entities carrying idx.
func (v View) Count(idx models.ComponentIndex) int {
	return len(v.s.members[idx])
}

// Members lists the entities carrying idx, unordered.
func (v View) Members(idx models.ComponentIndex) []models.EntityID {
	m := v.s.members[idx]
	ids := make([]models.EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

// Entities lists every live entity, unordered.
func (v View) Entities() []models.EntityID {
	ids := make([]models.EntityID, 0, len(v.s.entities))
	for id := range v.s.entities {
		ids = append(ids, id)
	}
	return ids
}

func (v View) Get(id models.EntityID, idx models.ComponentIndex) (values.Value, bool) {
	return v.s.getLocked(id, idx)
}

func (v View) Has(id models.EntityID, idx models.ComponentIndex) bool {
	_, ok := v.s.getLocked(id, idx)
	return ok
}

// SlotVersion is the version of the last mutation of idx on id, including a
// removal. It is false if the slot was never written.
func (v View) SlotVersion(id models.EntityID, idx models.ComponentIndex) (uint64, bool) {
	rec, ok := v.s.entities[id]
	if !ok {
		return 0, false
	}
	sl, ok := rec.slots[idx]
	if !ok {
		return 0, false
	}
	return sl.version, true
}

// SortBySpawn orders live ids by spawn sequence. Unknown ids must not be passed.
func (v View) SortBySpawn(ids []models.EntityID) {
	v.s.sortLocked(ids)
}
