package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-accounts/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	entry := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestZerologLoggerKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "debug", false)

	log.Error("send sms failed", "to", "+15551234567", "error", errors.New("timeout"))

	entry := lastEntry(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "send sms failed", entry["message"])
	assert.Equal(t, "+15551234567", entry["to"])
	assert.Equal(t, "timeout", entry["error"])
}

func TestZerologLoggerPrintf(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "info", false)

	log.Info("account %s registered\n", "jane@example.com")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "account jane@example.com registered", entry["message"])
}

func TestZerologLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn", false)

	log.Debug("hidden")
	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Equal(t, "shown", lastEntry(t, &buf)["message"])
}

func TestZerologLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "", false).With("notify")

	log.Info("ready", "odd")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "notify", entry["component"])
	assert.Equal(t, "odd", entry["extra"])
}
