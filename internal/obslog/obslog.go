// Package obslog wraps log/slog with the handful of fields every
// component in this module logs against: run/trace id, turn number,
// agent name. It exists so call sites write `obslog.L(ctx).Info(...)`
// instead of threading a raw *slog.Logger everywhere.
package obslog

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

var base = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLevel adjusts the package-wide minimum level; useful for CLI -v flags.
func SetLevel(level slog.Level) {
	base = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// With returns a logger annotated with the given key/value pairs, to be
// threaded through a context via WithContext.
func With(args ...any) *slog.Logger {
	return base.With(args...)
}

// WithContext attaches logger to ctx for later retrieval via L.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// L returns the logger attached to ctx, or the package default.
func L(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return base
}
