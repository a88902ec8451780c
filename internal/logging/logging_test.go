package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "info", FormatJSON)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("dispatch", zap.String("routine", "strlen"))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch", entry["msg"])
	assert.Equal(t, "strlen", entry["routine"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "debug", FormatConsole)
	require.NoError(t, err)

	log.Debug("scan", zap.Int("units", 3))
	assert.Contains(t, buf.String(), "scan")
	assert.Contains(t, buf.String(), `"units": 3`)
}

func TestNewWriter_Errors(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "loud", FormatJSON)
	assert.Error(t, err)

	_, err = NewWriter(&bytes.Buffer{}, "info", "xml")
	assert.ErrorContains(t, err, "xml")
}
