// Package logging provides structured JSON logging on top of log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	level slog.Level
}

// NewLogger creates a new structured logger writing to stdout.
func NewLogger(level string) *Logger {
	return NewLoggerWithWriter(level, os.Stdout)
}

// NewLoggerWithWriter creates a structured logger writing JSON lines to w.
func NewLoggerWithWriter(level string, w io.Writer) *Logger {
	l := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	}

	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, opts)),
		level:  l,
	}
}

// Nop returns a logger that discards everything. Components fall back to it
// when constructed without a logger.
func Nop() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})),
		level:  slog.LevelError + 1,
	}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// WithContext returns a new context with the logger.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return NewLogger("info")
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
	}
}

// WithService returns a logger with service name.
func (l *Logger) WithService(name string) *Logger {
	return l.With("service", name)
}

// WithComponent returns a logger tagged with a pipeline component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithRequestID returns a logger with request ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With("request_id", requestID)
}

// WithError returns a logger with error.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err.Error())
}

// Level returns the minimum level the logger emits.
func (l *Logger) Level() slog.Level {
	return l.level
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Fatal logs at error level and exits.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}
