package logger

import (
	"context"
	"io"
	"log/slog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for the HTTP request ID
	RequestIDKey ContextKey = "request_id"
	// BucketKey is the context key for the bucket being processed
	BucketKey ContextKey = "bucket"
	// ObjectKey is the context key for the object key being processed
	ObjectKey ContextKey = "key"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init replaces the default slog logger, writing to w
func Init(cfg Config, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithObject returns a context carrying the bucket and key of an object
func WithObject(ctx context.Context, bucket, key string) context.Context {
	ctx = context.WithValue(ctx, BucketKey, bucket)
	return context.WithValue(ctx, ObjectKey, key)
}

// WithRequestID returns a context carrying an HTTP request ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// FromContext returns the default logger with context values attached
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	for _, k := range []ContextKey{RequestIDKey, BucketKey, ObjectKey} {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			l = l.With(string(k), v)
		}
	}
	return l
}
