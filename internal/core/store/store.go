// Package store holds the authoritative entity/component state.
//
// Every component slot records the global version of its last effective
// mutation. Removing a component leaves a tombstone carrying the removal
// version, so change tracking sees removals too.
package store

import (
	"cmp"
	"slices"
	"sync"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Observer is told about every effective mutation, under the store's write
// lock. Implementations must not call back into the store.
type Observer interface {
	ComponentChanged(id models.EntityID, idx models.ComponentIndex, v values.Value, present bool)
	EntityDespawned(id models.EntityID)
}

// AreaIndex answers entity_in_area. It is kept current through Observer.
type AreaIndex interface {
	Observer
	Within(center values.Vec3, radius float32) []models.EntityID
}

type slot struct {
	value   values.Value
	version uint64
	present bool
}

type record struct {
	id    models.EntityID
	seq   uint64
	slots map[models.ComponentIndex]*slot
}

type Store struct {
	mu        sync.RWMutex
	entities  map[models.EntityID]*record
	members   map[models.ComponentIndex]map[models.EntityID]struct{}
	version   uint64
	seq       uint64
	resources models.EntityID

	newID     func() models.EntityID
	observers []Observer
	area      AreaIndex
	log       log.Log
}

type Option func(*Store)

// WithIDGenerator replaces the random id source. Ids colliding with a live
// entity or the null id are skipped.
func WithIDGenerator(fn func() models.EntityID) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observers = append(s.observers, o)
	}
}

// WithAreaIndex installs the spatial collaborator and subscribes it to mutations.
func WithAreaIndex(idx AreaIndex) Option {
	return func(s *Store) {
		s.area = idx
		s.observers = append(s.observers, idx)
	}
}

func WithLogger(l log.Log) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New creates a store holding only the resources entity.
func New(opts ...Option) *Store {
	s := &Store{
		entities: make(map[models.EntityID]*record),
		members:  make(map[models.ComponentIndex]map[models.EntityID]struct{}),
		newID:    models.NewEntityID,
		log:      log.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resources = s.insertLocked(nil)
	return s
}

// Spawn creates an entity holding exactly set. A repeated index behaves like
// consecutive Set calls.
func (s *Store) Spawn(set values.ComponentSet) models.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.insertLocked(set)
	s.log.Debug("entity spawned", log.Entity(id), log.Int("components", len(set)))
	return id
}

func (s *Store) insertLocked(set values.ComponentSet) models.EntityID {
	id := s.nextIDLocked()
	s.seq++
	rec := &record{id: id, seq: s.seq, slots: make(map[models.ComponentIndex]*slot, len(set))}
	s.entities[id] = rec
	for _, e := range set {
		s.writeLocked(rec, e.Index, e.Value)
	}
	return id
}

func (s *Store) nextIDLocked() models.EntityID {
	for {
		id := s.newID()
		if id.IsNull() {
			continue
		}
		if _, taken := s.entities[id]; taken {
			continue
		}
		return id
	}
}

// Despawn reports whether id existed. The resources entity cannot be despawned.
func (s *Store) Despawn(id models.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entities[id]
	if !ok || id == s.resources {
		return false
	}
	for idx, sl := range rec.slots {
		if sl.present {
			delete(s.members[idx], id)
		}
	}
	delete(s.entities, id)
	s.version++
	for _, o := range s.observers {
		o.EntityDespawned(id)
	}
	s.log.Debug("entity despawned", log.Entity(id))
	return true
}

func (s *Store) Exists(id models.EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

// Get returns the value of idx on id.
func (s *Store) Get(id models.EntityID, idx models.ComponentIndex) (values.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id, idx)
}

func (s *Store) getLocked(id models.EntityID, idx models.ComponentIndex) (values.Value, bool) {
	rec, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	sl, ok := rec.slots[idx]
	if !ok || !sl.present {
		return nil, false
	}
	return sl.value, true
}

func (s *Store) Has(id models.EntityID, idx models.ComponentIndex) bool {
	_, ok := s.Get(id, idx)
	return ok
}

// HasAll reports whether id exists and carries every index.
func (s *Store) HasAll(id models.EntityID, indices []models.ComponentIndex) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.entities[id]; !ok {
		return false
	}
	for _, idx := range indices {
		if _, ok := s.getLocked(id, idx); !ok {
			return false
		}
	}
	return true
}

// Set upserts idx on id. It returns false when id does not exist or v is nil;
// writing a value equal to the current one leaves the slot version alone.
func (s *Store) Set(id models.EntityID, idx models.ComponentIndex, v values.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok || v == nil {
		return false
	}
	s.writeLocked(rec, idx, v)
	return true
}

// SetMany applies set in order, exactly like one Set per entry.
func (s *Store) SetMany(id models.EntityID, set values.ComponentSet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok {
		return false
	}
	for _, e := range set {
		s.writeLocked(rec, e.Index, e.Value)
	}
	return true
}

// Add is Set; the two entry points differ only in intent.
func (s *Store) Add(id models.EntityID, idx models.ComponentIndex, v values.Value) bool {
	return s.Set(id, idx, v)
}

// AddMany is SetMany.
func (s *Store) AddMany(id models.EntityID, set values.ComponentSet) bool {
	return s.SetMany(id, set)
}

func (s *Store) writeLocked(rec *record, idx models.ComponentIndex, v values.Value) {
	if v == nil {
		return
	}
	sl, ok := rec.slots[idx]
	if ok && sl.present && values.Equal(sl.value, v) {
		return
	}
	if !ok {
		sl = &slot{}
		rec.slots[idx] = sl
	}
	if !sl.present {
		m := s.members[idx]
		if m == nil {
			m = make(map[models.EntityID]struct{})
			s.members[idx] = m
		}
		m[rec.id] = struct{}{}
	}
	s.version++
	sl.value = v
	sl.version = s.version
	sl.present = true
	for _, o := range s.observers {
		o.ComponentChanged(rec.id, idx, v, true)
	}
}

// Remove drops idx from id; absent components are left untouched.
func (s *Store) Remove(id models.EntityID, idx models.ComponentIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok {
		return false
	}
	s.removeLocked(rec, idx)
	return true
}

// RemoveMany is Remove per index, in order.
func (s *Store) RemoveMany(id models.EntityID, indices []models.ComponentIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok {
		return false
	}
	for _, idx := range indices {
		s.removeLocked(rec, idx)
	}
	return true
}

func (s *Store) removeLocked(rec *record, idx models.ComponentIndex) {
	sl, ok := rec.slots[idx]
	if !ok || !sl.present {
		return
	}
	delete(s.members[idx], rec.id)
	s.version++
	sl.value = nil
	sl.present = false
	sl.version = s.version
	for _, o := range s.observers {
		o.ComponentChanged(rec.id, idx, nil, false)
	}
}

// Query lists the entities carrying idx, in spawn order.
func (s *Store) Query(idx models.ComponentIndex) []models.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]models.EntityID, 0, len(s.members[idx]))
	for id := range s.members[idx] {
		ids = append(ids, id)
	}
	s.sortLocked(ids)
	return ids
}

// Resources returns the singleton entity holding world-global components.
func (s *Store) Resources() models.EntityID {
	return s.resources
}

// InArea lists the live entities within radius of center, nearest first. It
// is empty when no area index is installed.
func (s *Store) InArea(center values.Vec3, radius float32) []models.EntityID {
	if s.area == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.area.Within(center, radius)
	out := found[:0]
	for _, id := range found {
		if _, ok := s.entities[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Components returns a copy of every present component of id, in index order.
func (s *Store) Components(id models.EntityID) (values.ComponentSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	set := make(values.ComponentSet, 0, len(rec.slots))
	for idx, sl := range rec.slots {
		if sl.present {
			set = append(set, values.Entry{Index: idx, Value: sl.value})
		}
	}
	slices.SortFunc(set, func(a, b values.Entry) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return set, true
}

// Entities lists every live entity, including resources, in spawn order.
func (s *Store) Entities() []models.EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]models.EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	s.sortLocked(ids)
	return ids
}

// Len counts live entities, including resources.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Version is the global mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) sortLocked(ids []models.EntityID) {
	slices.SortFunc(ids, func(a, b models.EntityID) int {
		return cmp.Compare(s.entities[a].seq, s.entities[b].seq)
	})
}
