package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn))

	log.Info("hidden")
	log.Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 1")
}

func TestStandardLoggerAddsTraceAndChildFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithFormatter(&JSONFormatter{}))
	child := log.With(String("task", "StartService"))

	ctx := ContextWithTrace(context.Background(), TraceContext{SessionID: "abc", Product: "elasticsearch"})
	child.InfoContext(ctx, "started", Int("ticks", 5))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "started", decoded["msg"])
	assert.Equal(t, "StartService", decoded["task"])
	assert.Equal(t, "abc", decoded["session_id"])
	assert.Equal(t, "elasticsearch", decoded["product"])
	assert.EqualValues(t, 5, decoded["ticks"])
}

func TestRotatingFileReceivesEntries(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "installer.log")

	log := NewStandardLogger(WithOutput(&console), WithRotatingFile(path, 1, 1))
	log.Info("written to both")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to both"))
	assert.Contains(t, console.String(), "written to both")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestMockLoggerChildSharesEntries(t *testing.T) {
	mock := NewMockLogger()
	child := mock.With(String("step", "Locations"))
	child.Warn("invalid %s", "path")

	entries := mock.GetEntries()
	require.Len(t, entries, 1)
	v, ok := entries[0].Field("step")
	require.True(t, ok)
	assert.Equal(t, "Locations", v)
	assert.True(t, mock.HasEntry(LevelWarn, "invalid path"))
}
