package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseLevel("verbose")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestNew_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	l, err := New(&Config{
		Level:     LevelInfo,
		Format:    "json",
		Output:    "file",
		FilePath:  path,
		Component: "test",
	})
	require.NoError(t, err)

	l.Info("proof verified", "id", "abc", "events", 42)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "proof verified", entry["msg"])
	assert.Equal(t, "abc", entry["id"])
	assert.Equal(t, "test", entry["component"])
	assert.EqualValues(t, 42, entry["events"])
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	l, err := New(&Config{Level: LevelWarn, Format: "text", Output: "file", FilePath: path})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("also hidden")
	l.Warn("kept")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "kept")
}

func TestWithComponent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	l, err := New(&Config{Level: LevelInfo, Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)

	child := l.WithComponent("pipeline")
	child.Info("dispatched")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"pipeline"`)
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	l, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, l.Logger)
	assert.NoError(t, l.Close())
}

func TestFileRotator_RotatesAndBoundsBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	r, err := NewFileRotator(path, 1, 2)
	require.NoError(t, err)
	defer r.Close()

	// Each write is 600KB against a 1MB limit, so every second write
	// rotates.
	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 6; i++ {
		_, err := r.Write(chunk)
		require.NoError(t, err)
	}

	for _, name := range []string{"engine.log", "engine.log.1", "engine.log.2"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "engine.log.3"))
	assert.True(t, os.IsNotExist(err), "backups past MaxBackups must be dropped")
}

func TestFileRotator_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "engine.log")
	r, err := NewFileRotator(path, 1, 1)
	require.NoError(t, err)
	_, err = r.Write([]byte("entry\n"))
	require.NoError(t, err)
	require.NoError(t, r.Sync())
	require.NoError(t, r.Close())
}

func TestFileRotator_ZeroBackupsTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	r, err := NewFileRotator(path, 1, 0)
	require.NoError(t, err)
	defer r.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	_, err = r.Write(chunk)
	require.NoError(t, err)
	_, err = r.Write(chunk)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no backup files with MaxBackups=0")
}
