// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package adapters provides the pluggable logger and the client TLS
// settings used by the transport.
package adapters

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// DebugLevel for per-request traces.
	DebugLevel LogLevel = iota
	// InfoLevel for general informational messages.
	InfoLevel
	// WarnLevel for warning messages.
	WarnLevel
	// ErrorLevel for error messages.
	ErrorLevel
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a level name from configuration.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field represents a structured logging field (key-value pair).
type Field struct {
	Key   string
	Value any
}

// String builds a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int builds an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 builds a 64-bit integer field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Duration builds a duration field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err builds an "error" field.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Logger defines the interface for pluggable logging implementations.
// Applications can implement this interface to route client traces into
// their own logging framework.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// WithFields returns a new Logger with the given fields added to all log entries.
	WithFields(fields ...Field) Logger

	// Enabled reports whether messages at level are written.
	Enabled(level LogLevel) bool
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// DefaultLogger is the slog backed Logger.
type DefaultLogger struct {
	logger *slog.Logger
	level  LogLevel
}

// NewDefaultLogger returns an info level JSON logger writing to stderr.
func NewDefaultLogger() Logger {
	return NewLogger(os.Stderr, InfoLevel, FormatJSON)
}

// NewLogger returns a logger writing to w. Unknown formats fall back to text.
func NewLogger(w io.Writer, level LogLevel, format LogFormat) Logger {
	opts := &slog.HandlerOptions{Level: level.slog()}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &DefaultLogger{logger: slog.New(handler), level: level}
}

// Debug logs a debug-level message.
func (l *DefaultLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

// Info logs an info-level message.
func (l *DefaultLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

// Warn logs a warning-level message.
func (l *DefaultLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

// Error logs an error-level message.
func (l *DefaultLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

// WithFields returns a new logger with additional fields.
func (l *DefaultLogger) WithFields(fields ...Field) Logger {
	return &DefaultLogger{
		logger: l.logger.With(toArgs(fields)...),
		level:  l.level,
	}
}

// Enabled reports whether level passes the configured threshold.
func (l *DefaultLogger) Enabled(level LogLevel) bool {
	return level >= l.level
}

func (l *DefaultLogger) log(ctx context.Context, level LogLevel, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	l.logger.LogAttrs(ctx, level.slog(), msg, attrs...)
}

func toArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

// NoOpLogger is a logger that discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() Logger {
	return NoOpLogger{}
}

func (NoOpLogger) Debug(context.Context, string, ...Field) {}
func (NoOpLogger) Info(context.Context, string, ...Field)  {}
func (NoOpLogger) Warn(context.Context, string, ...Field)  {}
func (NoOpLogger) Error(context.Context, string, ...Field) {}
func (l NoOpLogger) WithFields(...Field) Logger            { return l }
func (NoOpLogger) Enabled(LogLevel) bool                   { return false }
