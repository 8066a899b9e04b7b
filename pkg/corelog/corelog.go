// Package corelog defines the leveled, field-carrying logger interface
// used across this module, matching the teacher's pkg/dialog
// StructuredLogger shape (component/call-id/dialog-id fields, a no-op
// default) but backed by zerolog instead of a hand-rolled writer.
package corelog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the interface every component logs through. Nothing in
// this module imports zerolog directly outside this package.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	With(component string) Logger
}

// noop discards everything; used as the default when the host supplies
// no logger, and throughout unit tests.
type noop struct{}

func NoOp() Logger                                    { return noop{} }
func (noop) Debug(string, ...Field)                    {}
func (noop) Info(string, ...Field)                     {}
func (noop) Warn(string, ...Field)                     {}
func (noop) Error(string, error, ...Field)             {}
func (n noop) With(string) Logger                      { return n }

// zlog adapts zerolog.Logger to the Logger interface.
type zlog struct {
	z zerolog.Logger
}

// New builds a Logger writing structured JSON (or console output when
// pretty is true) to w.
func New(w io.Writer, pretty bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zlog{z: zerolog.New(w).With().Timestamp().Logger()}
}

func apply(ev *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}

func (l zlog) Debug(msg string, fields ...Field) { apply(l.z.Debug(), fields).Msg(msg) }
func (l zlog) Info(msg string, fields ...Field)  { apply(l.z.Info(), fields).Msg(msg) }
func (l zlog) Warn(msg string, fields ...Field)  { apply(l.z.Warn(), fields).Msg(msg) }
func (l zlog) Error(msg string, err error, fields ...Field) {
	apply(l.z.Error().Err(err), fields).Msg(msg)
}
func (l zlog) With(component string) Logger {
	return zlog{z: l.z.With().Str("component", component).Logger()}
}
