package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit applies a sliding-window request cap per client IP, mapping a
// requests-per-second budget onto httprate's per-minute window. Addresses
// in whitelist bypass the limiter entirely (trusted internal callers,
// health probes behind a load balancer).
func RateLimit(rps float64, burst int, whitelist []string) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 20
	}
	limitPerMinute := int(rps * 60)
	if burst > 0 && burst*60 > limitPerMinute {
		limitPerMinute = burst * 60
	}

	limiter := httprate.Limit(
		limitPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limitPerMinute))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"invalid-argument","message":"rate limit exceeded, try again shortly"}`))
		}),
	)

	whitelisted := make(map[string]bool, len(whitelist))
	for _, ip := range whitelist {
		whitelisted[ip] = true
	}

	return func(next http.Handler) http.Handler {
		wrapped := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(whitelisted) > 0 {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				if whitelisted[host] {
					next.ServeHTTP(w, r)
					return
				}
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
