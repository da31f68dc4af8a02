package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfenwick/bgtasks/internal/config"
)

func TestNew_LevelParsing(t *testing.T) {
	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
		warnEnabled  bool
	}{
		{name: "debug", level: "debug", debugEnabled: true, warnEnabled: true},
		{name: "info", level: "info", debugEnabled: false, warnEnabled: true},
		{name: "warn", level: "warn", debugEnabled: false, warnEnabled: true},
		{name: "error", level: "error", debugEnabled: false, warnEnabled: false},
		{name: "case insensitive", level: "DEBUG", debugEnabled: true, warnEnabled: true},
		{name: "invalid falls back to info", level: "verbose", debugEnabled: false, warnEnabled: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(config.LogConfig{Level: tc.level}, &buf)

			ctx := context.Background()
			assert.Equal(t, tc.debugEnabled, log.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tc.warnEnabled, log.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info"}, &buf)

	log.Info("task admitted", "task_id", "demo_abc_123", "queue_len", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task admitted", entry["msg"])
	assert.Equal(t, "demo_abc_123", entry["task_id"])
	assert.Equal(t, float64(1), entry["queue_len"])
}
