package logging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bnema/ealain/internal/domain/entity"
)

// FromContext extracts the logger from context
// If no logger is found, returns a disabled logger (no-op)
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// WithComponent creates a child logger with a component field
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("component", component).Logger()
	return WithContext(ctx, childLogger)
}

// WithPartition creates a child logger tagged with the cache partition
func WithPartition(ctx context.Context, p entity.Partition) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("partition", p.String()).Logger()
	return WithContext(ctx, childLogger)
}
