// Package logging builds the structured loggers used by the CLI and server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to stderr at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func New(level, prefix string) *log.Logger {
	return NewWithWriter(os.Stderr, level, prefix)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, level, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    ParseLevel(level) == log.DebugLevel,
		Prefix:          prefix,
		Level:           ParseLevel(level),
	})
}

// ParseLevel converts a level name to a log level.
func ParseLevel(level string) log.Level {
	l, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return l
}
