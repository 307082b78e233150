package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

// WithCorrelationID returns a context carrying the request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID retrieves the correlation ID from context, or "" if unset.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// NewCorrelationID mints a fresh correlation ID.
func NewCorrelationID() string {
	return uuid.NewString()
}
