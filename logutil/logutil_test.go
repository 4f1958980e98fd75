package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	var b bytes.Buffer
	logger := NewLogger(&b, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("shown", "states", 3)

	out := b.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=INFO msg=shown states=3")
	assert.NotContains(t, out, "source=", "source is only attached at debug level")
}

func TestTrace(t *testing.T) {
	var b bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&b, slog.LevelDebug))
	Trace("not yet")
	assert.Empty(t, b.String())

	slog.SetDefault(NewLogger(&b, LevelTrace))
	Trace("scanned state", "state", 7)

	line := strings.TrimSpace(b.String())
	assert.Contains(t, line, "level=TRACE")
	assert.Contains(t, line, "msg=\"scanned state\" state=7")
	assert.Contains(t, line, "source=logutil_test.go:", "source points at the caller of Trace")
}
