package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the process logger: JSON on stdout, debug level outside staging/production.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(appEnv, os.Stdout)
}

// NewWithWriter is New with an explicit sink, used by tests that assert on log output.
func NewWithWriter(appEnv string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// WithDispatch scopes a logger to a campaign/lead dispatch.
// Empty identifiers are omitted so partial context still logs cleanly.
func WithDispatch(l *slog.Logger, campaignID, leadID, callID string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	attrs := make([]any, 0, 6)
	if campaignID != "" {
		attrs = append(attrs, "campaign_id", campaignID)
	}
	if leadID != "" {
		attrs = append(attrs, "lead_id", leadID)
	}
	if callID != "" {
		attrs = append(attrs, "call_id", callID)
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}
