package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/weiliu/h5client/internal/logging"
)

// RequestIDHeader carries the per-request correlation id upstream.
const RequestIDHeader = "X-Request-ID"

type loggingTransport struct {
	next http.RoundTripper
}

// NewLoggingTransport decorates next with structured request logging and an
// X-Request-ID header.
func NewLoggingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}

	outbound := req.Clone(ctx)
	outbound.Header.Set(RequestIDHeader, requestID)

	logger := logging.FromContext(ctx).With(
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	resp, err := t.next.RoundTrip(outbound)
	if err != nil {
		logger.Warn("request failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, err
	}

	logger.Debug("request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, nil
}
