package logger

import "context"

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

const (
	ctxTraceID     contextKey = FieldTraceID
	ctxRequestID   contextKey = FieldRequestID
	ctxUserID      contextKey = FieldUserID
	ctxExecutionID contextKey = FieldExecutionID
)

// ContextWithTraceID stores a trace id for WithContext.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}

// ContextWithRequestID stores a request id for WithContext.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// ContextWithUserID stores the authenticated caller for WithContext.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}

// ContextWithExecutionID stores an execution id for WithContext.
func ContextWithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxExecutionID, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// UserIDFromContext returns the caller id stored in ctx, if any.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

// ExecutionIDFromContext returns the execution id stored in ctx, if any.
func ExecutionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxExecutionID).(string)
	return v
}
