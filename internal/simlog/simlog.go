// Package simlog wraps the structured logger used throughout the
// simulator. There is no package-level global: a Logger is constructed
// once at startup and passed explicitly into every component that needs
// one, so a run's log output is fully determined by what was handed to
// it rather than by init-time side effects.
package simlog

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"

	"github.com/aeromesh/aeromesh/internal/packet"
	"github.com/aeromesh/aeromesh/internal/vtime"
)

// Logger is a thin facade over charmbracelet/log that standardizes the
// two fields nearly every log line in this module carries: the node id
// and the virtual time the event occurred at.
type Logger struct {
	l *log.Logger
}

// New builds a Logger writing to w at the given level ("debug", "info",
// "warn", "error"; unrecognized values fall back to info).
func New(w io.Writer, level string) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           parseLevel(level),
	})
	return &Logger{l: l}
}

// Default builds a Logger writing to stderr at info level, for callers
// that don't need a particular destination.
func Default() *Logger {
	return New(os.Stderr, "info")
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// For scopes a logger to a single node, carrying its id through every
// subsequent line.
func (lg *Logger) For(node packet.NodeID) *NodeLogger {
	return &NodeLogger{l: lg.l.With("node", string(node))}
}

// NodeLogger is a Logger already scoped to one node; callers just add
// the virtual time per call.
type NodeLogger struct {
	l *log.Logger
}

func (n *NodeLogger) Info(now vtime.Time, msg string, kv ...interface{}) {
	n.l.With("t", formatTime(now)).Info(msg, kv...)
}

func (n *NodeLogger) Warn(now vtime.Time, msg string, kv ...interface{}) {
	n.l.With("t", formatTime(now)).Warn(msg, kv...)
}

func (n *NodeLogger) Debug(now vtime.Time, msg string, kv ...interface{}) {
	n.l.With("t", formatTime(now)).Debug(msg, kv...)
}

func (n *NodeLogger) Error(now vtime.Time, msg string, kv ...interface{}) {
	n.l.With("t", formatTime(now)).Error(msg, kv...)
}

// reportPattern is the strftime layout used for any human-facing report
// timestamp derived from a run's wall-clock start time (e.g. naming an
// output file), mirroring the teacher's daily-log-name formatting.
const reportPattern = "%Y-%m-%d_%H%M%S"

// FormatReportName renders t (a wall-clock time, not virtual time) into
// a filename-safe stamp using the configured strftime pattern.
func FormatReportName(t time.Time) (string, error) {
	f, err := strftime.New(reportPattern)
	if err != nil {
		return "", err
	}
	return f.FormatString(t), nil
}

func formatTime(t vtime.Time) string {
	return t.String()
}
