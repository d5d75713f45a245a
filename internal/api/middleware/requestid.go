package middleware

import (
	"net/http"

	"github.com/driftcast/driftcast/internal/log"
	"github.com/google/uuid"
)

// RequestID uses the caller's X-Request-ID header if present, otherwise
// generates one, propagating it through both the response and the
// request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
