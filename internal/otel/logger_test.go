package logging

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout(t *testing.T) {
	var info, debug bytes.Buffer
	log := slog.New(Fanout(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With(slog.String("run", "r1")).WithGroup("export")

	log.Debug("vision_report.export.backoff", slog.Int("delay", 20))
	log.Info("vision_report.export.polled", slog.String("status", "running"))

	assert.NotContains(t, info.String(), "backoff")
	assert.Contains(t, info.String(), "run=r1")
	assert.Contains(t, info.String(), "export.status=running")
	assert.Contains(t, debug.String(), "vision_report.export.backoff")
	assert.Contains(t, debug.String(), "vision_report.export.polled")
}

func TestFanoutEnabled(t *testing.T) {
	h := Fanout(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, h.Enabled(t.Context(), slog.LevelError))
}

func TestNewFile(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir, time.Date(2026, 10, 1, 6, 5, 4, 0, time.UTC))
	assert.Equal(t, filepath.Join(dir, "log_2026-10-01_06-05-04.log"), f.Filename)

	_, err := f.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.FileExists(t, f.Filename)

	assert.Equal(t, filepath.Join("logs", "log_2026-10-01_06-05-04.log"),
		NewFile("", time.Date(2026, 10, 1, 6, 5, 4, 0, time.UTC)).Filename)
}
