package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		def := Default()
		assert.Equal(t, def.Log, cfg.Log)
		assert.Equal(t, def.Runtime, cfg.Runtime)
		assert.Equal(t, def.Spatial, cfg.Spatial)
		assert.Equal(t, def.Observer, cfg.Observer)
		assert.Equal(t, def.Assets.BaseURL, cfg.Assets.BaseURL)
		assert.True(t, cfg.Registry.Seal)
		assert.Empty(t, cfg.Registry.Manifests)
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		cfg, err := Load(writeFile(t, `
log:
  level: debug
runtime:
  tick_interval: 20ms
registry:
  manifests: [components.yaml]
spatial:
  cell_size: 4
assets:
  base_url: https://cdn.example.com/assets/
observer:
  enabled: false
`))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 20*time.Millisecond, cfg.Runtime.TickInterval)
		assert.Equal(t, []string{"components.yaml"}, cfg.Registry.Manifests)
		assert.Equal(t, float32(4), cfg.Spatial.CellSize)
		assert.Equal(t, "https://cdn.example.com/assets/", cfg.Assets.BaseURL)
		assert.False(t, cfg.Observer.Enabled)
		assert.Equal(t, Default().Runtime.MemoryLimit, cfg.Runtime.MemoryLimit)
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		t.Setenv("WORLDHOST_RUNTIME_TICK_INTERVAL", "5ms")
		t.Setenv("WORLDHOST_OBSERVER_ADDR", "0.0.0.0:9000")
		cfg, err := Load(writeFile(t, "runtime:\n  tick_interval: 20ms\n"))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Millisecond, cfg.Runtime.TickInterval)
		assert.Equal(t, "0.0.0.0:9000", cfg.Observer.Addr)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("Invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "log:\n  level: loud\nspatial:\n  cell_size: 0\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.level")
		assert.Contains(t, err.Error(), "spatial.cell_size")
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Observer.Token = "secret"
	body, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := Load(writeFile(t, string(body)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Runtime, loaded.Runtime)
	assert.Equal(t, cfg.Observer, loaded.Observer)
	assert.Equal(t, cfg.Physics, loaded.Physics)
}
