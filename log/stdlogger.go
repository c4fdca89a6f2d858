package log

import (
	"fmt"
	"io"
	stdlog "log"
)

// Level orders the verbosity a StdLogger will emit at or above.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config-file/env level name to a Level, defaulting to
// LevelInfo for anything unrecognized.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// StdLogger is a Logger backed by the standard library's log package. It is
// the default concrete implementation for cmd/git-inner-server: no
// structured-logging library appears anywhere in the example pack wired to
// more than an indirect, unused dependency, so this keeps the ambient
// logging concern on the stack the corpus actually exercises.
type StdLogger struct {
	out   *stdlog.Logger
	level Level
}

// NewStdLogger returns a StdLogger writing to w, emitting messages at or
// above level.
func NewStdLogger(w io.Writer, level Level) *StdLogger {
	return &StdLogger{out: stdlog.New(w, "", stdlog.LstdFlags), level: level}
}

func (l *StdLogger) log(level Level, tag, msg string, keysAndValues ...any) {
	if level < l.level {
		return
	}
	l.out.Print(format(tag, msg, keysAndValues))
}

func (l *StdLogger) Debug(msg string, keysAndValues ...any) { l.log(LevelDebug, "DEBUG", msg, keysAndValues...) }
func (l *StdLogger) Info(msg string, keysAndValues ...any)  { l.log(LevelInfo, "INFO", msg, keysAndValues...) }
func (l *StdLogger) Warn(msg string, keysAndValues ...any)  { l.log(LevelWarn, "WARN", msg, keysAndValues...) }
func (l *StdLogger) Error(msg string, keysAndValues ...any) { l.log(LevelError, "ERROR", msg, keysAndValues...) }

func format(tag, msg string, keysAndValues []any) string {
	s := fmt.Sprintf("[%s] %s", tag, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		s += fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	return s
}

var _ Logger = (*StdLogger)(nil)
