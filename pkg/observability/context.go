package observability

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDCtxKey struct{}

// Attribute keys shared by the logger and the CLI surfaces.
const (
	CorrelationIDKey = "correlation_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
)

// WithCorrelationID stamps the context with a correlation id, generating one
// when id is empty. The logging handler attaches it to every record emitted
// under the returned context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey{}, id)
}

// CorrelationIDFromContext returns the context's correlation id, or "" when
// none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDCtxKey{}).(string)
	return id
}
