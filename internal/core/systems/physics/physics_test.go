package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/spatial"
	"github.com/zeusync/worldcore/internal/core/values"
)

func TestRaycast(t *testing.T) {
	const translation, radius models.ComponentIndex = 0, 1
	grid := spatial.NewGrid(spatial.Config{CellSize: 4, DefaultRadius: 1}, translation, radius)

	near, far, behind, aside := models.NewEntityID(), models.NewEntityID(), models.NewEntityID(), models.NewEntityID()
	grid.ComponentChanged(near, translation, values.Vec3{5, 0, 0}, true)
	grid.ComponentChanged(far, translation, values.Vec3{20, 0.5, 0}, true)
	grid.ComponentChanged(behind, translation, values.Vec3{-5, 0, 0}, true)
	grid.ComponentChanged(aside, translation, values.Vec3{10, 5, 0}, true)

	rc := NewRaycaster(grid, Config{MaxDistance: 50})

	t.Run("Nearest first along the ray", func(t *testing.T) {
		hits := rc.Raycast(values.Vec3{}, values.Vec3{2, 0, 0})
		require.Len(t, hits, 2)
		assert.Equal(t, near, hits[0].Entity)
		assert.InDelta(t, 4, hits[0].Distance, 1e-5)
		assert.Equal(t, far, hits[1].Entity)
	})

	t.Run("Origin inside a body", func(t *testing.T) {
		hits := rc.Raycast(values.Vec3{5, 0.5, 0}, values.Vec3{0, 1, 0})
		require.NotEmpty(t, hits)
		assert.Equal(t, near, hits[0].Entity)
		assert.Zero(t, hits[0].Distance)
	})

	t.Run("Max distance", func(t *testing.T) {
		short := NewRaycaster(grid, Config{MaxDistance: 10})
		hits := short.Raycast(values.Vec3{}, values.Vec3{1, 0, 0})
		require.Len(t, hits, 1)
		assert.Equal(t, near, hits[0].Entity)
	})

	t.Run("Zero direction", func(t *testing.T) {
		assert.Empty(t, rc.Raycast(values.Vec3{}, values.Vec3{}))
	})
}

func TestVectorHelpers(t *testing.T) {
	v, ok := Normalize(values.Vec3{3, 0, 4})
	require.True(t, ok)
	assert.InDelta(t, 1, Length(v), 1e-6)
	assert.InDelta(t, 5, Distance(values.Vec3{}, values.Vec3{3, 0, 4}), 1e-6)
	assert.Equal(t, values.Vec3{2, 4, 6}, Scale(Add(values.Vec3{1, 1, 1}, values.Vec3{0, 1, 2}), 2))
	assert.Equal(t, float32(0), Dot(values.Vec3{1, 0, 0}, values.Vec3{0, 1, 0}))
	assert.Equal(t, DefaultConfig().MaxDistance, NewRaycaster(nil, Config{}).cfg.MaxDistance)
}
