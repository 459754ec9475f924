package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)
	InitWithWriter(buf, level, format)
	t.Cleanup(func() {
		InitWithWriter(&bytes.Buffer{}, "INFO", "text")
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := captureOutput(t, "DEBUG", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("WarnLevelFiltersInfo", func(t *testing.T) {
		buf := captureOutput(t, "WARN", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("InvalidLevelIgnored", func(t *testing.T) {
		buf := captureOutput(t, "INFO", "text")
		SetLevel("LOUD")

		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t, "INFO", "json")

	Info("session opened", KeyHost, "alpha", KeyBytes, 100)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "session opened", entry["msg"])
	assert.Equal(t, "alpha", entry[KeyHost])
	assert.EqualValues(t, 100, entry[KeyBytes])
}

func TestFieldConstructors(t *testing.T) {
	buf := captureOutput(t, "DEBUG", "text")

	Debug("evicted", Host("beta"), Reason("idle"), Attempt(2), Err(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{"host=beta", "reason=idle", "attempt=2", "error=boom"} {
		assert.True(t, strings.Contains(out, want), "missing %q in %q", want, out)
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := t.TempDir() + "/scout.log"
	require.NoError(t, Init(Config{Level: "info", Format: "text", Output: path}))
	t.Cleanup(func() {
		InitWithWriter(&bytes.Buffer{}, "INFO", "text")
	})

	assert.Equal(t, int32(LevelInfo), currentLevel.Load())
}
