package http

import (
	"net/http"

	"github.com/MKhiriev/go-remind-sync/internal/utils"
)

// traceIDHeader carries the request's trace id back to the caller and is
// honored on the way in so upstream proxies can propagate their own ids.
const traceIDHeader = "X-Trace-Id"

// TraceIDMiddleware assigns every request a trace id and attaches a
// request-scoped logger carrying it to the context, so all log entries
// produced while serving the request can be correlated.
func (h *Handler) TraceIDMiddleware(next http.Handler) http.Handler {
	uuidGenerator := utils.NewUUIDGenerator()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceIDHeader)
		if traceID == "" {
			traceID = uuidGenerator.Generate()
		}

		requestLogger := h.logger.With().Str("trace_id", traceID).Logger()
		ctx := requestLogger.WithContext(r.Context())

		w.Header().Set(traceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
