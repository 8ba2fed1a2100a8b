package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(0))
	assert.False(t, l.Core().Enabled(-1))
}

func TestWithContextAddsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Init(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}}))

	ctx := context.WithValue(context.Background(), RunIDKey, "20250301-1")
	ctx = ContextWithSource(ctx, "510k")
	WithContext(ctx).Info("era failed")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, jsonpool.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "era failed", entry["message"])
	assert.Equal(t, "20250301-1", entry["run_id"])
	assert.Equal(t, "510k", entry["source"])
	assert.NotContains(t, entry, "unit")
}
