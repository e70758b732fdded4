package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLoggerAttachesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Output: &buf, Component: "replay"})
	require.NoError(t, err)

	logger.Debug("tap recognized", "classification", "left")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "replay", record["component"])
	assert.Equal(t, "left", record["classification"])
	assert.True(t, strings.HasSuffix(record["time"].(string), "Z"))
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
