// Package logging provides structured logging for the edge node via zerolog.
//
// DESIGN: Thin wrapper around zerolog with:
//   - Configurable level, format (json/console)
//   - Global() sets the default logger for the whole process
//   - Request ID context helpers for tracing a translateRequest end to end
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Context keys for request tracking.
type contextKey string

const RequestIDKey contextKey = "request_id"

// Config controls how the global logger is constructed (from
// config.Config's LogLevel/LogFormat, decoupled here to avoid an import
// cycle with the config package).
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Global configures the package-level zerolog logger (log.Logger) for the
// whole process. Called once from cmd/edgenode at startup.
func Global(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stdout
	if cfg.Format == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
			Level(level).With().Timestamp().Logger()
		return
	}

	log.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestIDContext returns a new context carrying the request ID. The
// API middleware attaches one per request and logs it on the access line;
// the pipeline, cache engine and sync manager do not read it back.
func WithRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
