package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

const (
	translation models.ComponentIndex = 0
	radius      models.ComponentIndex = 1
	other       models.ComponentIndex = 2
)

func place(g *Grid, id models.EntityID, x, y, z float32) {
	g.ComponentChanged(id, translation, values.Vec3{x, y, z}, true)
}

func TestGridWithin(t *testing.T) {
	g := NewGrid(Config{CellSize: 4}, translation, radius)
	a, b, c := models.NewEntityID(), models.NewEntityID(), models.NewEntityID()
	place(g, a, 1, 0, 0)
	place(g, b, 3, 0, 0)
	place(g, c, 40, 0, 0)

	t.Run("Nearest first", func(t *testing.T) {
		assert.Equal(t, []models.EntityID{a, b}, g.Within(values.Vec3{}, 5))
		assert.Equal(t, []models.EntityID{b, a}, g.Within(values.Vec3{4, 0, 0}, 3))
	})

	t.Run("Crosses cell boundaries and negative coordinates", func(t *testing.T) {
		d := models.NewEntityID()
		place(g, d, -2, -2, 0)
		assert.Contains(t, g.Within(values.Vec3{}, 3), d)
		g.EntityDespawned(d)
		assert.NotContains(t, g.Within(values.Vec3{}, 3), d)
	})

	t.Run("Huge radius falls back to a scan", func(t *testing.T) {
		assert.Len(t, g.Within(values.Vec3{}, 1e30), 3)
	})

	t.Run("Moves and removals", func(t *testing.T) {
		place(g, c, 2, 0, 0)
		assert.Len(t, g.Within(values.Vec3{}, 5), 3)

		g.ComponentChanged(c, translation, nil, false)
		assert.Len(t, g.Within(values.Vec3{}, 5), 2)
		assert.Equal(t, 2, g.Len())
	})

	t.Run("Buckets are keyed by cell", func(t *testing.T) {
		assert.Len(t, g.buckets, 1)
		place(g, b, 10, 0, 0)
		assert.Len(t, g.buckets, 2)
		assert.Contains(t, g.buckets, cell{2, 0, 0})
		assert.Equal(t, []models.EntityID{b}, g.Within(values.Vec3{10, 0, 0}, 1))
		place(g, b, 3, 0, 0)
		assert.Len(t, g.buckets, 1)
		assert.NotContains(t, g.buckets, cell{2, 0, 0})
	})

	t.Run("Unrelated components and bad radii", func(t *testing.T) {
		g.ComponentChanged(a, other, values.F32(1), true)
		assert.Empty(t, g.Within(values.Vec3{}, -1))
		assert.Equal(t, float32(4), g.CellSize())
	})
}

func TestGridBodies(t *testing.T) {
	g := NewGrid(Config{CellSize: 2, DefaultRadius: 0.5}, translation, radius)
	small, big := models.NewEntityID(), models.NewEntityID()
	place(g, small, 10, 0, 0)
	place(g, big, -10, 0, 0)
	g.ComponentChanged(big, radius, values.F32(9.5), true)

	bodies := g.Bodies(values.Vec3{}, 1, true)
	require.Len(t, bodies, 1)
	assert.Equal(t, big, bodies[0].Entity)
	assert.Equal(t, float32(9.5), bodies[0].Radius)

	g.ComponentChanged(big, radius, nil, false)
	assert.Empty(t, g.Bodies(values.Vec3{}, 1, true))

	assert.Empty(t, g.Bodies(values.Vec3{}, 1, false))
	assert.Len(t, g.Bodies(values.Vec3{}, 10, false), 2)
}

func TestDefaultConfig(t *testing.T) {
	g := NewGrid(Config{CellSize: -1, DefaultRadius: -3}, translation, radius)
	assert.Equal(t, DefaultConfig().CellSize, g.CellSize())
	id := models.NewEntityID()
	place(g, id, 0, 0, 0)
	bodies := g.Bodies(values.Vec3{}, 0, true)
	require.Len(t, bodies, 1)
	assert.Zero(t, bodies[0].Radius)
}
