package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_EmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf)
	logger.Info("pipeline started", "channel", "chat")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "pipeline started", record["msg"])
	assert.Equal(t, "chat", record["channel"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", &buf)

	logger.Info("suppressed")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("verbose", &buf)
	logger.Debug("suppressed at info")
	assert.Zero(t, buf.Len())
	logger.Info("visible")
	assert.NotZero(t, buf.Len())
}

func TestWith_CarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("call_id", "abc123")
	logger.Info("reply delivered")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "abc123", record["call_id"])
}
