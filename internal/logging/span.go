package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span represents a logical unit of work, typically one backend call.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span from the provided context, enriching the logger
// with tracing metadata. It returns the derived context and the span handle.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	parent := scopeOf(ctx)
	spanID := uuid.NewString()
	logger := parent.log()

	traceID := parent.traceID
	if traceID == "" {
		traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", traceID))
	}
	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parent.spanID != "" {
		logger = logger.With(slog.String("parent_span_id", parent.spanID))
	}

	ctx = derive(ctx, func(s *scope) {
		s.logger = logger
		s.traceID = traceID
		s.spanID = spanID
	})

	return ctx, &Span{
		name:   name,
		logger: logger,
		start:  time.Now(),
	}
}

// Logger returns the span-scoped logger.
func (s *Span) Logger() *slog.Logger {
	if s == nil {
		return slog.Default()
	}
	return s.logger
}

// End finalizes the span and emits a completion log entry. A non-nil err is
// logged at warn level; successful spans log at debug to keep CLI output quiet.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if err != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
