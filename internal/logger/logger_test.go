package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("unknown"))
}

func TestEventAttachesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	event(l.Info(), []any{"topic", "climat", "sources", 3}).Msg("rapport généré")

	out := buf.String()
	assert.Contains(t, out, `"topic":"climat"`)
	assert.Contains(t, out, `"sources":3`)
	assert.Contains(t, out, "rapport généré")
}

func TestEventSkipsMalformedPairs(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	// A non-string key and a trailing dangling value are both ignored.
	event(l.Info(), []any{42, "x", "ok", "oui", "dangling"}).Msg("m")

	out := buf.String()
	assert.Contains(t, out, `"ok":"oui"`)
	assert.NotContains(t, out, "dangling")
}

func TestPackageHelpers(t *testing.T) {
	// The level helpers chain through the shared logger; they must not
	// panic and Get must hand back a usable logger.
	Debug("debug message", "k", "v")
	Info("info message", "k", 1)
	Warn("warn message")
	Error("error message", errors.New("boom"), "k", true)

	assert.NotNil(t, Get())
}
