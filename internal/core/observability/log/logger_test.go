package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/worldcore/internal/core/models"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug,
		"":      LevelInfo,
		"INFO":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"off":   LevelNone,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core), LevelInfo)

	t.Run("Level filter", func(t *testing.T) {
		logger.Debug("hidden")
		logger.Info("shown")
		require.Equal(t, 1, logs.FilterMessage("shown").Len())
		assert.Zero(t, logs.FilterMessage("hidden").Len())

		logger.SetLevel(LevelDebug)
		assert.Equal(t, LevelDebug, logger.GetLevel())
		logger.Debug("now shown")
		assert.Equal(t, 1, logs.FilterMessage("now shown").Len())
	})

	t.Run("Typed fields", func(t *testing.T) {
		id := models.NewEntityID()
		logger.With(Module("arena")).Error("violation",
			Entity(id),
			Component(3),
			Handle(9),
			Uint32("ptr", 16),
			Error(errors.New("boom")),
		)

		entries := logs.FilterMessage("violation").All()
		require.Len(t, entries, 1)
		ctx := entries[0].ContextMap()
		assert.Equal(t, "arena", ctx["module"])
		assert.Equal(t, id.String(), ctx["entity"])
		assert.Equal(t, uint32(3), ctx["component"])
		assert.Equal(t, uint64(9), ctx["query"])
		assert.Equal(t, "boom", ctx["error"])
	})

	t.Run("Nop", func(t *testing.T) {
		nop := NewNop()
		nop.Error("dropped")
		assert.NoError(t, nop.Sync())
	})
}
