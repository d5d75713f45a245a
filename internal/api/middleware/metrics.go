package middleware

import (
	"net/http"
	"strconv"

	"github.com/driftcast/driftcast/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Metrics records driftcast_http_requests_total for every request,
// keyed by chi's matched route pattern (not the raw path) to avoid a
// cardinality explosion from 32-hex deep-link identifiers.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(mw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.RecordHTTPRequest(route, statusClass(mw.status))
		})
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
