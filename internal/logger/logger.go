// Package logger provides the structured logging facade used across
// petpulse-go. It wraps log/slog behind a small interface so packages can be
// tested with a discard logger and so the backing handler can be swapped
// without touching call sites.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel controls the minimum level emitted by a Logger.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLevel maps a config string to a LogLevel. Unknown values fall back to
// info so a typo in a config file never silences the log entirely.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a typed key/value attribute attached to a log record.
type Field = slog.Attr

// Typed field constructors. These mirror the slog attribute helpers so call
// sites stay terse.
func String(key, value string) Field { return slog.String(key, value) }

func Int(key string, value int) Field { return slog.Int(key, value) }

func Int64(key string, value int64) Field { return slog.Int64(key, value) }

func Uint(key string, value uint) Field { return slog.Uint64(key, uint64(value)) }

func Uint64(key string, value uint64) Field { return slog.Uint64(key, value) }

func Float64(key string, value float64) Field { return slog.Float64(key, value) }

func Bool(key string, value bool) Field { return slog.Bool(key, value) }

func Duration(key string, d time.Duration) Field { return slog.Duration(key, d) }

func Time(key string, t time.Time) Field { return slog.Time(key, t) }

func Any(key string, value any) Field { return slog.Any(key, value) }

// Error wraps an error under the conventional "error" key. A nil error is
// logged as the empty string rather than panicking.
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Logger is the logging interface injected into services.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that includes fields on every record.
	With(fields ...Field) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger writing text records to w at the given level.
// opts may be nil; when provided its Level is overridden by level so the two
// cannot disagree.
func NewSlogLogger(w io.Writer, level LogLevel, opts *slog.HandlerOptions) Logger {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}
	o.Level = level.slogLevel()
	return &slogLogger{l: slog.New(slog.NewTextHandler(w, &o))}
}

// NewSlogLoggerWithHandler wraps an existing slog handler. Used when the
// caller wants JSON output or a custom handler chain.
func NewSlogLoggerWithHandler(h slog.Handler) Logger {
	return &slogLogger{l: slog.New(h)}
}

func (s *slogLogger) log(level slog.Level, msg string, fields ...Field) {
	s.l.LogAttrs(context.Background(), level, msg, fields...)
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields...) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields...) }

func (s *slogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return &slogLogger{l: s.l.With(args...)}
}

var defaultLogger atomic.Pointer[slogLogger]

// Default returns the process-wide logger. Before SetDefault runs it logs to
// stderr at info level via the slog default handler.
func Default() Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return &slogLogger{l: slog.Default()}
}

// SetDefault installs the process-wide logger. Intended to be called once
// from the command bootstrap after the configuration is loaded.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
	}
}
