package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "json", &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("source", "wwr").Msg("feed_fetch_failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "feed_fetch_failed", line["message"])
	assert.Equal(t, "wwr", line["source"])
	assert.Contains(t, line, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("", "console", &buf)
	require.NoError(t, err)
	log.Info().Msg("started")
	assert.Contains(t, buf.String(), "started")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", "json", nil)
	assert.Error(t, err)
	_, err = New("info", "xml", nil)
	assert.Error(t, err)
}
