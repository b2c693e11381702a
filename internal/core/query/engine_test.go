package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/store"
	"github.com/zeusync/worldcore/internal/core/values"
)

const (
	health models.ComponentIndex = iota
	dead
	speed
	name
)

func set(entries ...values.Entry) values.ComponentSet {
	return values.ComponentSet(entries)
}

func entities(rows []Row) []models.EntityID {
	ids := make([]models.EntityID, len(rows))
	for i, r := range rows {
		ids[i] = r.Entity
	}
	return ids
}

func TestFrame(t *testing.T) {
	t.Run("Include and exclude", func(t *testing.T) {
		s := store.New()
		e := NewEngine(s)
		h := e.Compile(Spec{
			Components: []models.ComponentIndex{health},
			Include:    []models.ComponentIndex{health},
			Exclude:    []models.ComponentIndex{dead},
		})

		alive := s.Spawn(set(values.Entry{Index: health, Value: values.F32(100)}))
		s.Spawn(set(
			values.Entry{Index: health, Value: values.F32(0)},
			values.Entry{Index: dead, Value: values.Empty{}},
		))

		rows, ok := e.Evaluate(h)
		require.True(t, ok)
		require.Len(t, rows, 1)
		assert.Equal(t, alive, rows[0].Entity)
		assert.Equal(t, []values.Value{values.F32(100)}, rows[0].Values)
	})

	t.Run("Projection order and missing components", func(t *testing.T) {
		s := store.New()
		e := NewEngine(s)
		h := e.Compile(Spec{
			Components: []models.ComponentIndex{name, speed, health},
			Include:    []models.ComponentIndex{health},
		})
		s.Spawn(set(
			values.Entry{Index: health, Value: values.F32(1)},
			values.Entry{Index: name, Value: values.String("orc")},
		))

		rows, _ := e.Evaluate(h)
		require.Len(t, rows, 1)
		assert.Equal(t, []values.Value{values.String("orc"), values.F32(1)}, rows[0].Values)
	})

	t.Run("Spawn order", func(t *testing.T) {
		s := store.New()
		e := NewEngine(s)
		var want []models.EntityID
		for i := 0; i < 20; i++ {
			want = append(want, s.Spawn(set(values.Entry{Index: speed, Value: values.F32(float32(i))})))
		}
		rows, _ := e.Evaluate(e.Compile(Spec{Include: []models.ComponentIndex{speed}}))
		assert.Equal(t, want, entities(rows))
	})

	t.Run("Empty include matches resources too", func(t *testing.T) {
		s := store.New()
		e := NewEngine(s)
		id := s.Spawn(nil)
		rows, _ := e.Evaluate(e.Compile(Spec{}))
		assert.Equal(t, []models.EntityID{s.Resources(), id}, entities(rows))
	})

	t.Run("Unknown handle", func(t *testing.T) {
		e := NewEngine(store.New())
		_, ok := e.Evaluate(Handle(42))
		assert.False(t, ok)
	})
}

func TestChanged(t *testing.T) {
	s := store.New()
	e := NewEngine(s)
	h := e.Compile(Spec{
		Include: []models.ComponentIndex{health},
		Changed: []models.ComponentIndex{health},
	})

	id := s.Spawn(set(
		values.Entry{Index: health, Value: values.F32(10)},
		values.Entry{Index: speed, Value: values.F32(1)},
	))

	rows, _ := e.Evaluate(h)
	require.Equal(t, []models.EntityID{id}, entities(rows))

	t.Run("Unrelated mutation does not reappear", func(t *testing.T) {
		s.Set(id, speed, values.F32(2))
		rows, _ := e.Evaluate(h)
		assert.Empty(t, rows)
	})

	t.Run("Equal write is not a change", func(t *testing.T) {
		s.Set(id, health, values.F32(10))
		rows, _ := e.Evaluate(h)
		assert.Empty(t, rows)
	})

	t.Run("Watched mutation reappears once", func(t *testing.T) {
		s.Set(id, health, values.F32(9))
		rows, _ := e.Evaluate(h)
		assert.Equal(t, []models.EntityID{id}, entities(rows))
		rows, _ = e.Evaluate(h)
		assert.Empty(t, rows)
	})

	t.Run("Handles age independently", func(t *testing.T) {
		other := e.Compile(Spec{Changed: []models.ComponentIndex{health}})
		rows, _ := e.Evaluate(other)
		assert.Equal(t, []models.EntityID{id}, entities(rows))
		rows, _ = e.Evaluate(h)
		assert.Empty(t, rows)
	})

	t.Run("Removal counts as a change", func(t *testing.T) {
		watch := e.Compile(Spec{Changed: []models.ComponentIndex{speed}})
		e.Evaluate(watch)
		require.True(t, s.Remove(id, speed))
		rows, _ := e.Evaluate(watch)
		assert.Equal(t, []models.EntityID{id}, entities(rows))
	})
}

func TestSpawnDespawnEvents(t *testing.T) {
	s := store.New()
	e := NewEngine(s)
	filter := Spec{
		Components: []models.ComponentIndex{health},
		Include:    []models.ComponentIndex{health},
		Exclude:    []models.ComponentIndex{dead},
	}
	spawnSpec, despawnSpec := filter, filter
	spawnSpec.Event = Spawn
	despawnSpec.Event = Despawn
	spawned := e.Compile(spawnSpec)
	despawned := e.Compile(despawnSpec)

	a := s.Spawn(set(values.Entry{Index: health, Value: values.F32(5)}))
	b := s.Spawn(set(values.Entry{Index: health, Value: values.F32(6)}))

	rows, _ := e.Evaluate(spawned)
	assert.Equal(t, []models.EntityID{a, b}, entities(rows))
	rows, _ = e.Evaluate(despawned)
	assert.Empty(t, rows)

	t.Run("Only new matches", func(t *testing.T) {
		rows, _ := e.Evaluate(spawned)
		assert.Empty(t, rows)

		c := s.Spawn(set(values.Entry{Index: speed, Value: values.F32(1)}))
		s.Add(c, health, values.F32(7))
		rows, _ = e.Evaluate(spawned)
		assert.Equal(t, []models.EntityID{c}, entities(rows))
	})

	t.Run("Despawn carries previous projection", func(t *testing.T) {
		e.Evaluate(despawned)
		s.Set(a, health, values.F32(99))
		e.Evaluate(despawned)

		require.True(t, s.Despawn(a))
		s.Add(b, dead, values.Empty{})

		rows, _ := e.Evaluate(despawned)
		require.Len(t, rows, 2)
		assert.Equal(t, []models.EntityID{a, b}, entities(rows))
		assert.Equal(t, []values.Value{values.F32(99)}, rows[0].Values)
		assert.Equal(t, []values.Value{values.F32(6)}, rows[1].Values)

		rows, _ = e.Evaluate(despawned)
		assert.Empty(t, rows)
	})

	t.Run("Leaving and returning respawns", func(t *testing.T) {
		e.Evaluate(spawned)
		s.Remove(b, dead)
		rows, _ := e.Evaluate(spawned)
		assert.Equal(t, []models.EntityID{b}, entities(rows))
	})
}

func TestHandles(t *testing.T) {
	s := store.New()
	e := NewEngine(s)
	spec := Spec{Include: []models.ComponentIndex{health, health}, Changed: []models.ComponentIndex{health}}

	h1 := e.CompileFor("arena", spec)
	h2 := e.CompileFor("arena", spec)
	h3 := e.CompileFor("lobby", spec)
	assert.NotZero(t, h1)
	assert.NotEqual(t, h1, h2)

	assert.Equal(t, []models.ComponentIndex{health}, spec.normalized().Include)

	assert.Equal(t, 2, e.DropAll("arena"))
	_, ok := e.Evaluate(h1)
	assert.False(t, ok)
	_, ok = e.Evaluate(h3)
	assert.True(t, ok)
	_, ok = e.EvaluateFor("arena", h3)
	assert.False(t, ok)
	_, ok = e.EvaluateFor("lobby", h3)
	assert.True(t, ok)

	assert.True(t, e.Drop(h3))
	assert.False(t, e.Drop(h3))
	assert.Zero(t, e.Len())
}

func TestSpecIndices(t *testing.T) {
	spec := Spec{
		Components: []models.ComponentIndex{name, health},
		Include:    []models.ComponentIndex{health},
		Exclude:    []models.ComponentIndex{dead},
		Changed:    []models.ComponentIndex{name},
	}
	assert.Equal(t, []models.ComponentIndex{health, dead, name}, spec.Indices())
	assert.True(t, Despawn.Valid())
	assert.False(t, Event(3).Valid())
	assert.Equal(t, "spawn", Spawn.String())
}
