// Package context carries request-scoped values (trace ID, authenticated account)
// through context.Context.
package context

import (
	"context"
)

type contextKey string

const (
	contextKeyTraceID   = contextKey("traceID")
	contextKeyAccountID = contextKey("accountID")
)

// TraceIDFromContext extracts the trace ID from the context.
// Returns the trace ID and true if present, or empty string and false if not present.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok
}

// WithTraceID creates a new context with the given trace ID value.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

// AccountIDFromContext extracts the ID of the account bound to the request's session.
// Only the session signature has been checked at this point; the account may no longer exist.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(contextKeyAccountID).(string)

	return accountID, ok
}

// WithAccountID creates a new context carrying the session's account ID.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, contextKeyAccountID, accountID)
}
