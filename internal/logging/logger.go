// Package logging wraps logrus behind a small interface so subsystems never
// import logrus directly, matching the structured-logging idiom used
// throughout the retrieval pack (chirpstack's device session store, the LIFX
// control session) in place of the teacher's plain log.Printf.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a structured logging field set, e.g. {"universe": 1, "winner": "sacn"}.
type Fields map[string]any

// Logger is the structured log sink the core consumes. Production wires a
// logrus.Logger-backed implementation; tests can substitute a recorder.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
	With(fields Fields) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger backed by logrus, writing to os.Stderr with a text
// formatter, matching the level convention of the teacher's log.Printf
// prefixes ("Warning: ...", "Failed to ...").
func New(level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(msg string, fields Fields) { l.entry.WithFields(toLogrus(fields)).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields Fields)  { l.entry.WithFields(toLogrus(fields)).Info(msg) }
func (l *logrusLogger) Warn(msg string, fields Fields)  { l.entry.WithFields(toLogrus(fields)).Warn(msg) }
func (l *logrusLogger) Error(msg string, fields Fields) { l.entry.WithFields(toLogrus(fields)).Error(msg) }

func (l *logrusLogger) With(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(toLogrus(fields))}
}

func toLogrus(fields Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Noop returns a Logger that discards everything, useful for tests that
// don't care about log output.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, Fields)   {}
func (noopLogger) Info(string, Fields)    {}
func (noopLogger) Warn(string, Fields)    {}
func (noopLogger) Error(string, Fields)   {}
func (noopLogger) With(Fields) Logger     { return noopLogger{} }
