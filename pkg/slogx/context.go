package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithAttempt tags the context logger with a login attempt id and portal.
func WithAttempt(ctx context.Context, attemptID, portal string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("attempt_id", attemptID, "portal", portal))
}
