// Package logging defines the leveled logger the blob store writes
// through. The four-level printf interface follows Badger and Pebble;
// callers with structured loggers (slog, zap) wrap them behind it.
//
// Line format of the built-in logger:
//
//	2026/08/23 18:45:13 INFO picked 3 blob files for garbage collection
//
// Reference: RocksDB v10.7.5 include/rocksdb/env.h (Logger class)
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
)

// Level filters what the built-in logger emits. Each level includes the
// ones above it.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger receives the store's log output. Implementations must be safe
// for concurrent use; the store logs from multiple goroutines.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// DefaultLogger writes leveled lines through a log.Logger. The level is
// fixed at construction.
type DefaultLogger struct {
	logger *log.Logger
	level  Level
}

// NewLogger returns a logger writing to w at the given level.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

func (l *DefaultLogger) Errorf(format string, args ...any) { l.output(LevelError, format, args) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.output(LevelWarn, format, args) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.output(LevelInfo, format, args) }
func (l *DefaultLogger) Debugf(format string, args ...any) { l.output(LevelDebug, format, args) }

func (l *DefaultLogger) output(level Level, format string, args []any) {
	if level > l.level {
		return
	}
	_ = l.logger.Output(3, level.String()+" "+fmt.Sprintf(format, args...))
}

// IsNil reports whether l is nil, including the typed-nil case where a
// nil concrete pointer was assigned to the interface. Calling methods
// through such an interface panics, so both forms count as "no logger".
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDefault returns l if usable, otherwise a WARN-level stderr logger.
// Keeps the store's logger non-nil after open.
func OrDefault(l Logger) Logger {
	if IsNil(l) {
		return NewLogger(os.Stderr, LevelWarn)
	}
	return l
}
