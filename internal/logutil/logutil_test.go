package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, log.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, log.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, log.InfoLevel, ParseLevel("loud"))
}

func TestSetupRoutesSlog(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(&buf, "warn")

	slog.Info("hidden")
	slog.Warn("token refresh failed", "platform", "tiktok")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "token refresh failed")
	assert.Contains(t, out, "platform=tiktok")
}
