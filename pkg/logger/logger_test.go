package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestKeyValueFields(t *testing.T) {
	log, logs := observed()

	log.Warn("Search failed",
		"endpoint", "title",
		"page", 2,
		"duration", 150*time.Millisecond,
		"error", errors.New("connection refused"),
		"dangling",
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "title", fields["endpoint"])
	assert.EqualValues(t, 2, fields["page"])
	assert.Equal(t, 150*time.Millisecond, fields["duration"])
	assert.Equal(t, "connection refused", fields["error"])
	assert.Contains(t, fields, "dangling")
}

func TestWithSessionShortensID(t *testing.T) {
	log, logs := observed()

	log.WithComponent("search-service").
		WithSession("3f2b9c1e-8a7d-4e2f-9b1c-0d2e3f4a5b6c").
		Info("Search completed")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "search-service", fields["component"])
	assert.Equal(t, "3f2b9c1e", fields["session"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", "json")
	assert.Error(t, err)

	log, err := New("debug", "text")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
