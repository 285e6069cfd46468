package testutils

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder(t *testing.T) {
	rec := NewLogRecorder()
	log := rec.Logger().With("component", "test")

	log.Info("started", "count", 3)
	log.WithGroup("req").Warn("slow", "ms", 1200, slog.Group("peer", "ip", "10.0.0.1"))

	entries := rec.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, slog.LevelInfo, entries[0].Level)
	assert.Equal(t, "test", entries[0].String("component"))
	assert.Equal(t, "3", entries[0].String("count"))

	assert.Equal(t, slog.LevelWarn, entries[1].Level)
	assert.Equal(t, "1200", entries[1].String("req.ms"))
	assert.Equal(t, "10.0.0.1", entries[1].String("req.peer.ip"))
	assert.Equal(t, "test", entries[1].String("component"))

	assert.Len(t, rec.Find("slow"), 1)
	assert.True(t, rec.Contains("10.0.0.1"))
	assert.False(t, rec.Contains("missing"))
	assert.Empty(t, entries[0].String("missing"))

	rec.Reset()
	assert.Empty(t, rec.Entries())
}
