// Package api implements the HTTP Surface: the chi router and handlers
// that expose the Session Engine, Explorer and Feature Index to browser
// and proxy clients.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/driftcast/driftcast/internal/api/middleware"
	"github.com/driftcast/driftcast/internal/audit"
	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/domain/session/registry"
	"github.com/driftcast/driftcast/internal/health"
	"github.com/driftcast/driftcast/internal/index"
	"github.com/driftcast/driftcast/internal/log"
	"github.com/driftcast/driftcast/internal/persistence"
	"github.com/driftcast/driftcast/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Server holds every dependency a handler needs. It carries no mutable
// state of its own; all session state lives behind the registry.
type Server struct {
	logger zerolog.Logger
	cfg    config.AppConfig

	registry   *registry.Registry
	index      *index.Index
	health     *health.Manager
	streamRate *ratelimit.Limiter
	persist    *persistence.Store
	audit      *audit.Logger

	startTime time.Time
}

// Deps bundles the constructed singletons NewServer wires together. Every
// field but Persist is required; composition happens once in
// cmd/daemon/main.go. Persist is nil when no persistence DSN is configured,
// in which case the rating endpoint answers without recording anything.
type Deps struct {
	Logger   zerolog.Logger
	Config   config.AppConfig
	Registry *registry.Registry
	Index    *index.Index
	Health   *health.Manager
	Persist  *persistence.Store
}

// NewServer builds the API surface over an already-running registry and
// index. It does not itself open a listener; call Router().ServeHTTP or
// http.ListenAndServe(cfg.API.ListenAddr, srv.Router()).
func NewServer(d Deps) *Server {
	return &Server{
		logger:   d.Logger.With().Str("component", "api").Logger(),
		cfg:      d.Config,
		registry: d.Registry,
		index:    d.Index,
		health:   d.Health,
		persist:  d.Persist,
		audit:    audit.NewLogger(),
		streamRate: ratelimit.New(ratelimit.Config{
			GlobalRate:      1000,
			GlobalBurst:     2000,
			PerIPRate:       8,
			PerIPBurst:      16,
			ModeRates:       map[string]rate.Limit{"stream": 4},
			ModeBurst:       map[string]int{"stream": 8},
			CleanupInterval: 10 * time.Minute,
		}),
		startTime: time.Now(),
	}
}

// Router builds the chi mux: canonical middleware stack, then every
// endpoint the HTTP surface exposes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	middleware.ApplyStack(r, middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        []string{"*"},
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		TracingService:        "driftcast-api",
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.API.RateLimitRPS > 0,
		RateLimitGlobalRPS:    s.cfg.API.RateLimitRPS,
		RateLimitBurst:        s.cfg.API.RateLimitBurst,
	})

	if s.cfg.API.MaxPayloadBytes > 0 {
		r.Use(maxBodyBytes(s.cfg.API.MaxPayloadBytes))
	}

	r.Get("/", s.handleIndex)
	r.Get("/stream", s.handleStream)
	r.Head("/stream", s.handleStream)
	r.Get("/events", s.handleEvents)

	r.Post("/explorer", s.handleExplorer)
	r.Post("/next-track", s.handleNextTrack)
	r.Post("/refresh-sse", s.handleRefreshSSE)
	r.Post("/session/force-next", s.handleForceNext)
	r.Post("/session/reset-drift", s.handleResetDrift)
	r.Post("/session/zoom/{mode}", s.handleZoom)

	r.Get("/search", s.handleSearch)
	r.Get("/sessions/now-playing", s.handleNowPlaying)
	r.Post("/rate", s.handleRateTrack)

	// Legacy alias, superseded by /events. Kept only to answer with an
	// RFC 8594 deprecation response instead of a bare 404.
	r.Get("/sse", s.handleDeprecatedSSE)

	r.Get("/health", s.health.ServeHealth)
	r.Get("/ready", s.health.ServeReady)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdminToken)
		r.Get("/internal/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/internal/sessions", s.handleInternalSessions)
		r.Get("/internal/logs/recent", s.handleRecentLogs)
		r.Post("/internal/log-level", s.handleSetLogLevel)
		r.Get("/internal/verify-storage", s.handleVerifyStorage)
	})

	// Deep links: chi matches static segments ahead of these regexp
	// params regardless of registration order, so "/search" and friends
	// are never shadowed by a bare hex id.
	r.Get("/{id:[a-f0-9]{32}}", s.handleDeepLinkTrack)
	r.Get("/{id:[a-f0-9]{32}}/{nextId:[a-f0-9]{32}}", s.handleDeepLinkSession)

	return r
}

// maxBodyBytes caps every request body to limit so a misbehaving client
// cannot force large allocations through json.Decode.
func maxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) logFor(ctx context.Context) zerolog.Logger {
	return log.WithComponentFromContext(ctx, "api")
}
