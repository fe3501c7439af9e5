package api

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLogging records per-request metrics and emits one structured log
// line per request, carrying the trace ID when a span is active.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.Metrics.IncrementRequests(r.URL.Path, r.Method, strconv.Itoa(rec.status))
		s.Metrics.RecordRequestLatency(r.URL.Path, r.Method, duration)

		logger := s.Logger
		if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
			logger = logger.With(
				zap.String("trace_id", span.SpanContext().TraceID().String()),
			)
		}
		logger.Debug("request handled",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
		)
	})
}
