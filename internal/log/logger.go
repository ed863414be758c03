// Package log wraps log/slog with request-scoped fields carried in context.
package log

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Setup installs the process-wide default logger. Release mode logs JSON,
// everything else logs text.
func Setup(w io.Writer, level string, release bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var logger *slog.Logger
	if release {
		logger = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(w, opts))
	}
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the current default logger instance.
func Logger() *slog.Logger {
	return slog.Default()
}

// WithContext returns a logger that includes trace_id and any additional log fields from context.
func WithContext(ctx interface{}) *slog.Logger {
	logger := Logger()
	var traceID string
	var logFields LogFields

	switch v := ctx.(type) {
	case *gin.Context:
		traceID = v.GetString("trace_id")
		if v.Request != nil {
			logFields = GetLogFields(v.Request.Context())
		}
	case context.Context:
		traceID = TraceID(v)
		logFields = GetLogFields(v)
	}

	if traceID != "" {
		logger = logger.With("trace_id", traceID)
	}

	for k, v := range logFields {
		logger = logger.With(k, v)
	}

	return logger
}

// Info logs at Info level with automatic trace_id and field extraction from context.
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...) //nolint:contextcheck // WithContext extracts metadata from context
}

// Error logs at Error level with automatic trace_id and field extraction from context.
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...) //nolint:contextcheck // WithContext extracts metadata from context
}

// Warn logs at Warn level with automatic trace_id and field extraction from context.
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...) //nolint:contextcheck // WithContext extracts metadata from context
}

// Debug logs at Debug level with automatic trace_id and field extraction from context.
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...) //nolint:contextcheck // WithContext extracts metadata from context
}
