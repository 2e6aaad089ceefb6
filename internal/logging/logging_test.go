package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(&buf, "debug", ""), "tmdb")
	logger.Debug().Str("query", "alien").Msg("fetching")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cineview", entry["service"])
	assert.Equal(t, "tmdb", entry["component"])
	assert.Equal(t, "alien", entry["query"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "test")
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupCreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "cineview.log")
	logger, closer, err := Setup(Config{File: path, Level: "info"})
	require.NoError(t, err)

	logger.Info().Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestSetupRejectsEmptyPath(t *testing.T) {
	_, _, err := Setup(Config{})
	assert.Error(t, err)
}

func TestSetupErrorReturnsUsableCloser(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, closer, err := Setup(Config{File: filepath.Join(blocker, "logs", "cineview.log")})
	require.Error(t, err)
	require.NotNil(t, closer)
	assert.NoError(t, closer.Close())

	_, closer, err = Setup(Config{})
	require.Error(t, err)
	require.NotNil(t, closer)
	assert.NoError(t, closer.Close())
}
