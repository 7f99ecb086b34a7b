package contextutil

import (
	"context"

	"go.uber.org/zap"
)

type key int

const (
	requestIDKey key = iota
	userIDKey
	sessionIDKey
	loggerKey
)

func stringValue(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(k).(string)
	return s
}

func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// WithCaller records the authenticated user and the session they used.
func WithCaller(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func GetUserID(ctx context.Context) string { return stringValue(ctx, userIDKey) }
func GetSessionID(ctx context.Context) string { return stringValue(ctx, sessionIDKey) }

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger prefers the request logger, then fallback, then a no-op.
func GetLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, _ := ctx.Value(loggerKey).(*zap.Logger); l != nil {
			return l
		}
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// Metadata is the request identity copied onto audit entries and events.
type Metadata struct {
	RequestID string
	UserID    string
	SessionID string
}

func ExtractMetadata(ctx context.Context) Metadata {
	return Metadata{
		RequestID: GetRequestID(ctx),
		UserID:    GetUserID(ctx),
		SessionID: GetSessionID(ctx),
	}
}
