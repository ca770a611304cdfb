package logging

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

// scope is the call-scoped state carried on a context. Every setter stores a
// fresh copy so parent contexts never observe a child's changes.
type scope struct {
	logger    *slog.Logger
	requestID string
	traceID   string
	spanID    string
}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func (s scope) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func derive(ctx context.Context, update func(*scope)) context.Context {
	s := scopeOf(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return derive(ctx, func(s *scope) { s.logger = logger })
}

// FromContext returns the call-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	return scopeOf(ctx).log()
}

// WithRequestID tags the context with the id sent upstream as X-Request-ID.
// The context logger gains a request_id attribute so span and transport
// entries for the same call correlate.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return derive(ctx, func(s *scope) {
		s.requestID = requestID
		s.logger = s.log().With(slog.String("request_id", requestID))
	})
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).requestID
}

func traceIDFrom(ctx context.Context) string {
	return scopeOf(ctx).traceID
}

func spanIDFrom(ctx context.Context) string {
	return scopeOf(ctx).spanID
}
