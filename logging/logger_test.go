package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("fatal"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, "json", resolveFormat("JSON"))
	assert.Equal(t, "console", resolveFormat(" console"))
	assert.Contains(t, []string{"json", "console"}, resolveFormat("auto"))
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestJSONLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tubechat.log")
	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{path, path}})
	require.NoError(t, err)

	logger.With("component", "ingest").Debug("chunks created", "chunks", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "chunks created", entry["msg"])
	assert.Equal(t, "ingest", entry["component"])
	assert.EqualValues(t, 3, entry["chunks"])
	_, err = time.Parse(time.RFC3339, entry["ts"].(string))
	assert.NoError(t, err)
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false)).With("component", "chunker")

	logger.Debug("hidden")
	logger.Warn("chunk embedding failed", "chunk_id", 2, "error", errors.New("quota exceeded"), "note", "two words")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  chunker: chunk embedding failed chunk_id=2")
	assert.Contains(t, out, `error="quota exceeded"`)
	assert.Contains(t, out, `note="two words"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar), false))
	logger.WithGroup("http").Info("request", "status", 200, "duration", 1500*time.Millisecond)
	assert.Contains(t, buf.String(), "http.status=200 http.duration=1.5s")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
