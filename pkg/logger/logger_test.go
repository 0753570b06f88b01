package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevelFiltersAndWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init("production", "warn")
	SetOutput(&buf)
	t.Cleanup(func() { Init("test", "info") })

	Info("dropped %d", 1)
	assert.Zero(t, buf.Len())

	Warn("client %s is slow", "u1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "client u1 is slow", line["message"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}

func TestInitFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init("production", "nonsense")
	SetOutput(&buf)
	t.Cleanup(func() { Init("test", "info") })

	Debug("hidden")
	assert.Zero(t, buf.Len())

	Info("shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}
