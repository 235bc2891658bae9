package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONWithComponentAndUser(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger := WithUser(WithComponent("api"), "alice")
	logger.Warn().Str("course", "CS201").Msg("Duty leave limit reached")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "api", entry["component"])
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, "CS201", entry["course"])
	assert.Equal(t, "Duty leave limit reached", entry["message"])
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: ErrorLevel, JSONOutput: true, Output: &buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	Logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	Logger.Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel(DebugLevel))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(WarnLevel))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel(ErrorLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}
