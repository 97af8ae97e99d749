// Package diag provides explicit, threaded diagnostic logging.
//
// The launcher's verbosity is a value carried by a Logger rather than a
// package-level mutable flag, so components that emit diagnostics take a
// *Logger instead of reading global state.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Level is the configured verbosity.
type Level int

const (
	Quiet Level = iota
	Normal
	Debug
)

// Logger emits bracket-tagged diagnostic lines to an output stream, gated
// by the configured Level.
type Logger struct {
	level Level
	out   io.Writer
	tag   string
}

// New returns a Logger writing to os.Stderr at the given level.
func New(level Level) *Logger {
	return &Logger{level: level, out: os.Stderr, tag: "syscage"}
}

// WithComponent returns a copy of l scoped to a sub-tag, e.g.
// l.WithComponent("tracer") prefixes lines with "[syscage:tracer] ".
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{level: l.level, out: l.out, tag: "syscage:" + name}
}

// Level reports the logger's configured verbosity.
func (l *Logger) Level() Level {
	return l.level
}

// Infof emits a line unless verbosity is Quiet.
func (l *Logger) Infof(format string, args ...any) {
	if l.level == Quiet {
		return
	}
	l.printf(format, args...)
}

// Debugf emits a line only at Debug verbosity.
func (l *Logger) Debugf(format string, args ...any) {
	if l.level != Debug {
		return
	}
	l.printf(format, args...)
}

func (l *Logger) printf(format string, args ...any) {
	fmt.Fprintf(l.out, "[%s] %s\n", l.tag, fmt.Sprintf(format, args...))
}
