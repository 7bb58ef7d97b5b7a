package audit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"moldash.org/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from the context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event writes a structured audit line enriched with request and caller
// context. The persisted trail lives in the auth store; this is the
// operational log operators actually tail.
func Event(ctx context.Context, log *zap.Logger, event string, fields ...zap.Field) {
	if log == nil {
		return
	}
	enriched := make([]zap.Field, 0, len(fields)+3)
	enriched = append(enriched, zap.String("audit_event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		enriched = append(enriched, zap.String("request_id", rid))
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		enriched = append(enriched, zap.String("subject", claims.Subject))
	}
	enriched = append(enriched, fields...)
	log.Info("audit", enriched...)
}
