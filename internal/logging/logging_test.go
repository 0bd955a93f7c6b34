package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Evaluation completed", zap.Int("evaluation", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "Evaluation completed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 3, entry["evaluation"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New("debug", "console", &buf)
	require.NoError(t, err)

	logger.Debug("Harmonic drive", zap.String("harmonic", "B3"))
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "Harmonic drive")
	assert.Contains(t, buf.String(), "B3")
}

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := New("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
