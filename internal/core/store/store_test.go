package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

const (
	health models.ComponentIndex = iota
	dead
	name
)

type recordingObserver struct {
	changed   []models.ComponentIndex
	despawned []models.EntityID
}

func (o *recordingObserver) ComponentChanged(_ models.EntityID, idx models.ComponentIndex, _ values.Value, _ bool) {
	o.changed = append(o.changed, idx)
}

func (o *recordingObserver) EntityDespawned(id models.EntityID) {
	o.despawned = append(o.despawned, id)
}

func sequentialIDs() func() models.EntityID {
	var next uint64
	return func() models.EntityID {
		next++
		return models.EntityID{ID0: 0, ID1: next}
	}
}

func TestSpawn(t *testing.T) {
	t.Run("Exists after spawn, including the empty set", func(t *testing.T) {
		s := New()
		for _, set := range []values.ComponentSet{nil, {}, {{Index: health, Value: values.F32(1)}}} {
			id := s.Spawn(set)
			assert.False(t, id.IsNull())
			assert.True(t, s.Exists(id))
		}
	})

	t.Run("Get returns the spawned value", func(t *testing.T) {
		s := New()
		id := s.Spawn(values.ComponentSet{{Index: health, Value: values.F32(100)}})

		v, ok := s.Get(id, health)
		require.True(t, ok)
		assert.Equal(t, values.F32(100), v)

		_, ok = s.Get(id, dead)
		assert.False(t, ok)
		_, ok = s.Get(models.NewEntityID(), health)
		assert.False(t, ok)
	})

	t.Run("Fresh ids", func(t *testing.T) {
		s := New()
		seen := map[models.EntityID]bool{s.Resources(): true}
		for range 100 {
			id := s.Spawn(nil)
			require.False(t, seen[id])
			seen[id] = true
		}
	})

	t.Run("Generator collisions are skipped", func(t *testing.T) {
		calls := 0
		ids := []models.EntityID{{}, {ID1: 1}, {ID1: 1}, {ID1: 2}}
		s := New(WithIDGenerator(func() models.EntityID {
			id := ids[calls]
			calls++
			return id
		}))
		assert.Equal(t, models.EntityID{ID1: 1}, s.Resources())
		assert.Equal(t, models.EntityID{ID1: 2}, s.Spawn(nil))
	})
}

func TestDespawn(t *testing.T) {
	obs := &recordingObserver{}
	s := New(WithObserver(obs))
	id := s.Spawn(values.ComponentSet{{Index: health, Value: values.F32(1)}})

	assert.True(t, s.Despawn(id))
	assert.False(t, s.Despawn(id))
	assert.False(t, s.Exists(id))
	assert.False(t, s.Has(id, health))
	assert.Empty(t, s.Query(health))
	assert.Equal(t, []models.EntityID{id}, obs.despawned)

	t.Run("Mutations on a despawned entity are no-ops", func(t *testing.T) {
		assert.False(t, s.Set(id, health, values.F32(2)))
		assert.False(t, s.AddMany(id, values.ComponentSet{{Index: dead, Value: values.Empty{}}}))
		assert.False(t, s.Remove(id, health))
		assert.False(t, s.RemoveMany(id, []models.ComponentIndex{health}))
		assert.False(t, s.Exists(id))
	})

	t.Run("Resources cannot be despawned", func(t *testing.T) {
		res := s.Resources()
		assert.False(t, s.Despawn(res))
		assert.True(t, s.Exists(res))
		assert.True(t, s.Set(res, name, values.String("world")))
		v, ok := s.Get(res, name)
		require.True(t, ok)
		assert.Equal(t, values.String("world"), v)
	})
}

func TestComponents(t *testing.T) {
	t.Run("Add and Set are the same upsert", func(t *testing.T) {
		s := New()
		a := s.Spawn(nil)
		b := s.Spawn(nil)
		require.True(t, s.Add(a, health, values.F32(5)))
		require.True(t, s.Set(b, health, values.F32(5)))
		require.True(t, s.Add(a, health, values.F32(6)))
		require.True(t, s.Set(b, health, values.F32(6)))

		va, _ := s.Get(a, health)
		vb, _ := s.Get(b, health)
		assert.Equal(t, va, vb)
	})

	t.Run("HasAll is AND", func(t *testing.T) {
		s := New()
		id := s.Spawn(values.ComponentSet{
			{Index: health, Value: values.F32(1)},
			{Index: name, Value: values.String("a")},
		})
		assert.True(t, s.HasAll(id, []models.ComponentIndex{health, name}))
		assert.True(t, s.HasAll(id, nil))
		assert.False(t, s.HasAll(id, []models.ComponentIndex{health, dead}))
		assert.False(t, s.HasAll(models.NewEntityID(), nil))
	})

	t.Run("Remove of an absent component", func(t *testing.T) {
		s := New()
		id := s.Spawn(nil)
		before := s.Version()
		assert.True(t, s.Remove(id, health))
		assert.Equal(t, before, s.Version())
	})

	t.Run("Nil values are ignored", func(t *testing.T) {
		s := New()
		id := s.Spawn(values.ComponentSet{{Index: health, Value: nil}})
		assert.False(t, s.Has(id, health))
		assert.False(t, s.Set(id, health, nil))
	})

	t.Run("Components snapshot in index order", func(t *testing.T) {
		s := New()
		id := s.Spawn(values.ComponentSet{
			{Index: name, Value: values.String("a")},
			{Index: health, Value: values.F32(1)},
		})
		set, ok := s.Components(id)
		require.True(t, ok)
		assert.Equal(t, []models.ComponentIndex{health, name}, set.Indices())

		_, ok = s.Components(models.NewEntityID())
		assert.False(t, ok)
	})
}

func TestBatchEquivalence(t *testing.T) {
	set := values.ComponentSet{
		{Index: health, Value: values.F32(3)},
		{Index: name, Value: values.String("orc")},
		{Index: health, Value: values.F32(4)},
	}

	single := New(WithIDGenerator(sequentialIDs()))
	batched := New(WithIDGenerator(sequentialIDs()))
	a := single.Spawn(nil)
	b := batched.Spawn(nil)
	require.Equal(t, a, b)

	for _, e := range set {
		require.True(t, single.Add(a, e.Index, e.Value))
	}
	require.True(t, batched.AddMany(b, set))

	sa, _ := single.Components(a)
	sb, _ := batched.Components(b)
	assert.Equal(t, sa, sb)
	assert.Equal(t, single.Version(), batched.Version())

	require.True(t, single.Remove(a, health))
	require.True(t, single.Remove(a, name))
	require.True(t, batched.RemoveMany(b, []models.ComponentIndex{health, name}))
	sa, _ = single.Components(a)
	sb, _ = batched.Components(b)
	assert.Equal(t, sa, sb)
	assert.Empty(t, sb)
}

func TestVersions(t *testing.T) {
	s := New()
	id := s.Spawn(values.ComponentSet{{Index: health, Value: values.F32(1)}})

	slotVersion := func() uint64 {
		var out uint64
		s.View(func(v View) {
			out, _ = v.SlotVersion(id, health)
		})
		return out
	}

	v1 := slotVersion()
	require.NotZero(t, v1)

	s.Set(id, health, values.F32(1))
	assert.Equal(t, v1, slotVersion(), "equal write is not a mutation")

	s.Set(id, health, values.F32(2))
	v2 := slotVersion()
	assert.Greater(t, v2, v1)

	s.Remove(id, health)
	v3 := slotVersion()
	assert.Greater(t, v3, v2, "removal keeps a tombstone version")

	s.View(func(v View) {
		assert.Equal(t, s.version, v.Version())
		assert.False(t, v.Has(id, health))
		_, ok := v.SlotVersion(id, dead)
		assert.False(t, ok)
	})
}

func TestQueryAndObservers(t *testing.T) {
	obs := &recordingObserver{}
	s := New(WithObserver(obs))

	var ids []models.EntityID
	for i := range 5 {
		ids = append(ids, s.Spawn(values.ComponentSet{{Index: health, Value: values.F32(float32(i))}}))
	}
	assert.Equal(t, ids, s.Query(health))

	s.Remove(ids[1], health)
	assert.Equal(t, []models.EntityID{ids[0], ids[2], ids[3], ids[4]}, s.Query(health))
	assert.Len(t, obs.changed, 6)

	all := s.Entities()
	require.Len(t, all, 6)
	assert.Equal(t, s.Resources(), all[0])
	assert.Equal(t, 6, s.Len())
}

type fixedArea struct {
	recordingObserver
	hits []models.EntityID
}

func (a *fixedArea) Within(values.Vec3, float32) []models.EntityID {
	return append([]models.EntityID(nil), a.hits...)
}

func TestInArea(t *testing.T) {
	assert.Nil(t, New().InArea(values.Vec3{}, 10))

	area := &fixedArea{}
	s := New(WithAreaIndex(area))
	a := s.Spawn(nil)
	b := s.Spawn(nil)
	area.hits = []models.EntityID{a, b}
	require.True(t, s.Despawn(b))

	assert.Equal(t, []models.EntityID{a}, s.InArea(values.Vec3{}, 10))
	assert.Equal(t, []models.EntityID{b}, area.despawned)
}
