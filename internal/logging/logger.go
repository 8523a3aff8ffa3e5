// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging capabilities.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new logger writing text records to stderr.
func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a logger that writes to w.
func NewLoggerTo(w io.Writer, level string) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops every record. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", name))}
}

// WithEntity returns a logger tagged with an entity type.
func (l *Logger) WithEntity(entity string) *Logger {
	return &Logger{Logger: l.With(slog.String("entity", entity))}
}

// WithOperation returns a logger tagged with an operation name.
func (l *Logger) WithOperation(op string) *Logger {
	return &Logger{Logger: l.With(slog.String("op", op))}
}

// WithSession returns a logger with session information.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{Logger: l.With(slog.String("session", sessionID))}
}
