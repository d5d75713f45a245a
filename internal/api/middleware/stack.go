// Package middleware provides the canonical HTTP ingress stack shared by
// every driftcast entry point: panic recovery, request-id propagation,
// CORS, security headers, metrics, tracing and rate limiting, applied in
// a fixed order so behavior never depends on which handler registered
// first.
package middleware

import (
	"github.com/driftcast/driftcast/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig configures the canonical stack. Each concern can be
// disabled independently; the order middleware runs in is fixed by
// ApplyStack, not by the caller.
type StackConfig struct {
	EnableCORS     bool
	AllowedOrigins []string

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing

	EnableLogging bool

	EnableRateLimit    bool
	RateLimitGlobalRPS float64
	RateLimitBurst     int
	RateLimitWhitelist []string
}

// ApplyStack applies the canonical middleware stack to r in order:
// recovery, request id, CORS, security headers, metrics, tracing,
// logging, then rate limiting closest to the handlers.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	if cfg.EnableRateLimit {
		r.Use(RateLimit(cfg.RateLimitGlobalRPS, cfg.RateLimitBurst, cfg.RateLimitWhitelist))
	}
}
