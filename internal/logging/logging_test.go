package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestSetupWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "dirstore.log")

	logger, cleanup, err := Setup(Config{
		Level:     "debug",
		FilePath:  logPath,
		MaxSizeMB: 1,
		MaxFiles:  2,
	})
	require.NoError(t, err)

	logger.Info("scan complete", slog.Int("files", 6))
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"scan complete"`)
	assert.Contains(t, string(data), `"files":6`)
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "dirstore.log")

	// 0 MB max forces rotation on every write
	w, err := NewRotatingWriter(logPath, 0, 3)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte(strings.Repeat("x", 128) + "\n"))
		require.NoError(t, err)
	}

	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err, "rotated file should exist")
}

func TestRotatingWriterKeepsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "dirstore.log")

	w, err := NewRotatingWriter(logPath, 0, 2)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 6; i++ {
		_, err := w.Write([]byte(strings.Repeat("y", 64) + "\n"))
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(logPath + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}
