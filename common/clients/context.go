package clients

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ActorKey is the context key for the acting user (X-Acting-User header)
	ActorKey contextKey = "actor"

	// RequestIDKey is the context key for the inbound request id (X-Request-ID header)
	RequestIDKey contextKey = "request-id"
)

// WithActor adds the acting user's email to the context.
// Outbound requests carry it as X-Acting-User.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the acting user from context
func GetActor(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ActorKey).(string)
	return actor, ok && actor != ""
}

// WithRequestID adds a request id to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request id from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	return requestID, ok && requestID != ""
}
