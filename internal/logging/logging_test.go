package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init("shouting", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shouting")
}

func TestInitWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fleetscore.log")
	require.NoError(t, Init("debug", path))

	log.Info().Str("component", "logging_test").Msg("rotating sink check")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotating sink check")
}
