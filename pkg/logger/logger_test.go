package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("chatty")
	require.ErrorIs(t, err, ErrUnknownLevel)
}

func TestNew_TextForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("duplicate url", "catalog", "Guide Star Catalog 1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=warn")
	assert.Contains(t, out, `catalog="Guide Star Catalog 1"`)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: FormatJSON, Writer: &buf})
	require.NoError(t, err)

	log.Info("done", "good", 3)
	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "{"), line)
	assert.Contains(t, line, `"good":3`)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = New(Options{Level: "loud"})
	require.ErrorIs(t, err, ErrUnknownLevel)
}
