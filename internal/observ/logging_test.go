package observ

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_EmitsEventJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "info", false)
	t.Cleanup(func() { Setup(os.Stdout, "info", false) })

	Log("session_refreshed", map[string]any{"cookies": 2})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "session_refreshed", line["event"])
	assert.Equal(t, float64(2), line["cookies"])
	assert.Equal(t, "info", line["level"])
	assert.NotEmpty(t, line["ts"])
}

func TestLog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "warn", false)
	t.Cleanup(func() { Setup(os.Stdout, "info", false) })

	Log("quiet", nil)
	Debug("quieter", nil)
	Warn("loud", map[string]any{"k": "v"})
	Error("louder", errors.New("boom"), nil)

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, `"event":"loud"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "\n")+1)
}

func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "chatty", false)
	t.Cleanup(func() { Setup(os.Stdout, "info", false) })

	Debug("hidden", nil)
	Log("shown", nil)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
