package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorTextHandlerColorsByLevel(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	log := slog.New(h)

	log.Info("hello")
	assert.Contains(t, buf.String(), "\033[32m")
	assert.Contains(t, buf.String(), "hello")

	buf.Reset()
	log.Error("boom")
	assert.Contains(t, buf.String(), "\033[31m")
}

func TestColorTextHandlerNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	slog.New(h).Info("plain")
	assert.NotContains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "plain")
}

func TestColorTextHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	require.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetupDaemonWritesToFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logFile := filepath.Join(t.TempDir(), "webui.log")
	w := SetupDaemon(logFile, false)
	defer func() { _ = w.Close() }()

	slog.Info("daemon started", "pid", 123)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "daemon started")
	assert.Contains(t, string(data), "pid=123")
}
