package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestForService(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	SetLogger(NewTestLogger(&buf))

	l := ForService("api")
	l.Info().Str("phase", "healthy").Msg("tick")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "healthy", entry["phase"])
	assert.Equal(t, "tick", entry["message"])
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "watchdog.log")
	var console bytes.Buffer

	require.NoError(t, Init(Config{Level: "info", Format: "json", File: path, Output: &console}))
	t.Cleanup(func() {
		_ = Close()
		_ = Init(Config{Level: "info", Format: "console"})
	})

	Info().Msg("hello")
	Debug().Msg("filtered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.NotContains(t, string(data), "filtered")
	assert.Contains(t, console.String(), "hello")
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &SlogHandler{logger: NewTestLogger(&buf)}
	logger := slog.New(h).WithGroup("suture").With("supervisor", "root")

	logger.Warn("service failed", "service", "loop-api", "restarting", true)

	out := buf.String()
	assert.True(t, strings.Contains(out, `"level":"warn"`), out)
	assert.Contains(t, out, `"suture.supervisor":"root"`)
	assert.Contains(t, out, `"suture.service":"loop-api"`)
	assert.Contains(t, out, `"suture.restarting":true`)
}
