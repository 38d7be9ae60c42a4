package middleware

import (
	"net/http"

	"github.com/letsbefriends/platform/internal/logging"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-ID"

// TracingMiddleware assigns every request a trace id, reusing the caller's
// when present.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = logging.NewTraceID()
		}
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), traceID)))
	})
}
