package testutil

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Len(t, handler.GetRecords(), 2)
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	})

	t.Run("keeps attributes of derived loggers", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "pipeline")).Info("run")
		logger.WithGroup("req").Info("served", slog.Int("status", 200))

		assert.True(t, handler.ContainsAttr("component", "pipeline"))
		assert.True(t, handler.ContainsAttr("req.status", int64(200)))
		assert.Equal(t, 2, handler.Count())
	})

	t.Run("clear", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		logger.Info("one")
		handler.Clear()
		assert.Equal(t, 0, handler.Count())
	})
}

func TestRandomSpecimenCSV(t *testing.T) {
	a := RandomSpecimenCSV(20, 7)
	assert.Equal(t, a, RandomSpecimenCSV(20, 7))

	lines := strings.Split(strings.TrimSpace(a), "\n")
	require.Len(t, lines, 21)
	assert.Equal(t, "species,lat,lon", lines[0])
}

func TestSpecimenWorkbook(t *testing.T) {
	data := SpecimenWorkbook(t)
	assert.NotEmpty(t, data)
	assert.Equal(t, []byte("PK"), data[:2])
}
