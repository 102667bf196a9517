package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(DebugLevel))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(WarnLevel))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(ErrorLevel))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestInitJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel, JSONOutput: true})

	logger := WithComponent("priority")
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "priority", entry["component"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "info", entry["level"])

	buf.Reset()
	jobLog := WithJobID(42)
	jobLog.Debug().Msg("job")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 42, entry["job_id"])
}
