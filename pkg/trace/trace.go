package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// TraceIDKey is the context key carrying the trace id.
const TraceIDKey = "trace_id"

// GenerateTraceID returns a random 32-char hex trace id.
func GenerateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// FromContext returns the trace id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithContext returns a child context carrying the trace id.
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// HeaderName is the HTTP header used to propagate trace ids.
func HeaderName() string {
	return "X-Trace-ID"
}
