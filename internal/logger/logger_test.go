package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"jobmate/careerwatch-service/internal/logger"
)

func TestComponent_AddsField(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.Component(logger.FromZap(zap.New(core)), "worker")

	log.Info("hello", logger.String("org", "Acme"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "worker", fields["component"])
	assert.Equal(t, "Acme", fields["org"])
}

func TestNew_LevelFiltering(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	// Must not panic at any level.
	l.Debug("filtered")
	l.Warn("kept")
	_ = l.Sync()
}

func TestNop_WithReturnsSelf(t *testing.T) {
	t.Parallel()

	nop := logger.NewNop()
	assert.Same(t, nop, nop.With(logger.String("k", "v")))
	assert.NoError(t, nop.Sync())
}
