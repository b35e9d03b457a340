// Package log provides structured logging utilities.
package log

import (
	"context"
)

type ctxKey string

const (
	requestIDKey  ctxKey = "request_id"
	operatorIDKey ctxKey = "operator_id"
)

// ContextWithRequestID stores the provided request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithOperatorID stores the provided operator ID in the context.
func ContextWithOperatorID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorIDKey, id)
}

// RequestIDFromContext extracts the request ID from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// OperatorIDFromContext extracts the operator ID from context if present.
func OperatorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(operatorIDKey).(string); ok {
		return v
	}
	return ""
}
