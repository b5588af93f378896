package simlog

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aeromesh/aeromesh/internal/vtime"
)

func TestForScopesNodeIDIntoEveryLine(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "info")

	node := lg.For("drone-1")
	node.Info(vtime.Zero.Add(vtime.FromSeconds(1)), "hello")

	out := buf.String()
	assert.Contains(t, out, "drone-1")
	assert.Contains(t, out, "hello")
}

func TestDebugLevelSuppressedByDefaultInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "info")
	node := lg.For("a")

	node.Debug(vtime.Zero, "should not appear")

	assert.Empty(t, buf.String())
}

func TestDebugLevelEmittedWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "debug")
	node := lg.For("a")

	node.Debug(vtime.Zero, "now it appears")

	assert.Contains(t, buf.String(), "now it appears")
}

func TestFormatReportNameMatchesPattern(t *testing.T) {
	name, err := FormatReportName(time.Date(2026, 7, 30, 9, 5, 1, 0, time.UTC))

	assert.NoError(t, err)
	assert.Equal(t, "2026-07-30_090501", name)
}

func TestUnrecognizedLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	lg := New(&buf, "bogus")
	node := lg.For("a")

	node.Info(vtime.Zero, "visible")
	node.Debug(vtime.Zero, "not visible")

	out := buf.String()
	assert.True(t, strings.Contains(out, "visible"))
	assert.False(t, strings.Contains(out, "not visible"))
}
