// Package registry implements the Session Registry: process-wide lookup
// of sessions by id, fingerprint, and client IP, plus the pre-warmed pool
// and idle sweep that keep the session population bounded.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/driftcast/driftcast/internal/cache"
	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/domain/session/engine"
	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ResolutionMethod names which step of the resolution order produced a
// session, for logging and the driftcast_session_resolution_total metric.
type ResolutionMethod string

const (
	ResolvedExplicitID  ResolutionMethod = "explicit-id"
	ResolvedFingerprint ResolutionMethod = "fingerprint"
	ResolvedOrphanIP    ResolutionMethod = "orphan-ip"
	ResolvedLastHealthy ResolutionMethod = "last-healthy-ip"
	ResolvedPrewarmPool ResolutionMethod = "prewarm-pool"
	ResolvedFreshCreate ResolutionMethod = "fresh-create"
)

// Handle bundles one session's data record with the engine that owns its
// mutations and the mixer it drives.
type Handle struct {
	Session *model.Session
	Engine  *engine.Engine
	Mixer   ports.Mixer
}

// MixerFactory builds a fresh, unstarted mixer for a new session.
type MixerFactory func() ports.Mixer

// Registry is the process-wide session directory.
type Registry struct {
	logger zerolog.Logger
	cfg    config.RegistryConfig

	index        ports.Index
	latent       ports.LatentClient
	bus          ports.Bus
	persist      ports.PlayStatsRecorder
	mixerFactory MixerFactory
	leadTime     time.Duration

	mu          sync.RWMutex
	byID        map[string]*Handle
	byIP        map[string]string
	fingerprint cache.Cache

	pool chan *Handle

	durable *badger.DB

	closeCh chan struct{}
	closeOnce sync.Once
}

// New builds a Registry. If cfg.DurablePath is set, fingerprint-to-session
// bindings are additionally persisted in an embedded badger store so a
// restart can still resolve a reconnecting client's fingerprint (the
// session itself is not durable, only the binding; a stale binding simply
// misses on lookup, same as an expired in-memory entry).
func New(logger zerolog.Logger, cfg config.RegistryConfig, idx ports.Index, latent ports.LatentClient, b ports.Bus, persist ports.PlayStatsRecorder, mixerFactory MixerFactory, leadTime time.Duration) (*Registry, error) {
	ttl := cfg.FingerprintTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	fingerprintCache := cache.NewMemoryCache(time.Minute)
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger.With().Str("component", "registry").Logger())
		if err != nil {
			return nil, fmt.Errorf("connecting fingerprint cache to redis: %w", err)
		}
		fingerprintCache = redisCache
	}

	r := &Registry{
		logger:       logger.With().Str("component", "registry").Logger(),
		cfg:          cfg,
		index:        idx,
		latent:       latent,
		bus:          b,
		persist:      persist,
		mixerFactory: mixerFactory,
		leadTime:     leadTime,
		byID:         make(map[string]*Handle),
		byIP:         make(map[string]string),
		fingerprint:  fingerprintCache,
		closeCh:      make(chan struct{}),
	}

	if cfg.DurablePath != "" {
		opts := badger.DefaultOptions(cfg.DurablePath).WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("opening durable fingerprint store: %w", err)
		}
		r.durable = db
	}

	if cfg.PrewarmPoolSize > 0 {
		r.pool = make(chan *Handle, cfg.PrewarmPoolSize)
	}

	go r.sweepLoop()
	return r, nil
}

// Create constructs a brand new session bootstrapped on seed, registers
// it under id/fingerprint/clientIP, and returns its handle.
func (r *Registry) Create(ctx context.Context, seed model.Track, fingerprint, clientIP string, ephemeral bool) (*Handle, error) {
	id := uuid.NewString()
	s := model.NewSession(id, fingerprint, clientIP, 50)
	s.IsEphemeral = ephemeral

	mx := r.mixerFactory()
	eng := engine.New(r.logger, s, mx, r.index, r.latent, r.bus, r.persist, r.leadTime)
	if err := eng.Bootstrap(ctx, seed); err != nil {
		_ = mx.Close()
		return nil, fmt.Errorf("decode-failed: %w", err)
	}
	// Bootstrap only decodes the seed track; nothing stages a next track
	// until the server starts exploring on its own, so kick off the
	// Prepare-Next protocol immediately rather than waiting idle for a
	// client-driven selection or the seed track's own completion.
	go eng.MaybePrepareNext()

	h := &Handle{Session: s, Engine: eng, Mixer: mx}

	r.mu.Lock()
	r.byID[id] = h
	r.byIP[clientIP] = id
	count := len(r.byID)
	r.mu.Unlock()

	if fingerprint != "" {
		r.bindFingerprint(fingerprint, id)
	}

	metrics.SetSessionsActive(count)
	return h, nil
}

// Resolve implements the lookup order: explicit id, then fingerprint,
// then same-IP orphan (no event client), then last-healthy session for
// the IP, then the pre-warmed pool. A fresh create is the caller's
// responsibility when Resolve returns ports.ErrNotFound.
func (r *Registry) Resolve(explicitID, fingerprint, clientIP string) (*Handle, ResolutionMethod, error) {
	if explicitID != "" {
		if h, ok := r.lookupByID(explicitID); ok {
			metrics.RecordSessionResolution(string(ResolvedExplicitID), "hit")
			return h, ResolvedExplicitID, nil
		}
		metrics.RecordSessionResolution(string(ResolvedExplicitID), "miss")
	}

	if fingerprint != "" {
		if id, ok := r.lookupFingerprint(fingerprint); ok {
			if h, ok := r.lookupByID(id); ok {
				metrics.RecordSessionResolution(string(ResolvedFingerprint), "hit")
				return h, ResolvedFingerprint, nil
			}
		}
		metrics.RecordSessionResolution(string(ResolvedFingerprint), "miss")
		return nil, "", fmt.Errorf("fingerprint-not-found: %w", ports.ErrNotFound)
	}

	if clientIP != "" {
		if h, ok := r.orphanForIP(clientIP); ok {
			metrics.RecordSessionResolution(string(ResolvedOrphanIP), "hit")
			return h, ResolvedOrphanIP, nil
		}
		if h, ok := r.lastHealthyForIP(clientIP); ok {
			metrics.RecordSessionResolution(string(ResolvedLastHealthy), "hit")
			return h, ResolvedLastHealthy, nil
		}
	}

	if h, ok := r.checkoutPool(); ok {
		metrics.RecordSessionResolution(string(ResolvedPrewarmPool), "hit")
		return h, ResolvedPrewarmPool, nil
	}

	return nil, "", ports.ErrNotFound
}

func (r *Registry) lookupByID(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	if ok {
		h.Session.Touch()
	}
	return h, ok
}

func (r *Registry) orphanForIP(clientIP string) (*Handle, bool) {
	r.mu.RLock()
	id, ok := r.byIP[clientIP]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h, ok := r.lookupByID(id)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	eventless := h.Session.EventClientCount == 0
	r.mu.RUnlock()
	if !eventless {
		return nil, false
	}
	return h, true
}

func (r *Registry) lastHealthyForIP(clientIP string) (*Handle, bool) {
	r.mu.RLock()
	id, ok := r.byIP[clientIP]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.lookupByID(id)
}

func (r *Registry) checkoutPool() (*Handle, bool) {
	if r.pool == nil {
		return nil, false
	}
	select {
	case h := <-r.pool:
		return h, true
	default:
		return nil, false
	}
}

// bindFingerprint records the fingerprint-to-session binding in the
// in-memory TTL cache and, if configured, the durable store.
func (r *Registry) bindFingerprint(fingerprint, sessionID string) {
	ttl := r.cfg.FingerprintTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	r.fingerprint.Set(fingerprint, sessionID, ttl)

	if r.durable != nil {
		_ = r.durable.Update(func(txn *badger.Txn) error {
			return txn.SetEntry(badger.NewEntry([]byte("fp:"+fingerprint), []byte(sessionID)).WithTTL(ttl))
		})
	}
}

func (r *Registry) lookupFingerprint(fingerprint string) (string, bool) {
	if v, ok := r.fingerprint.Get(fingerprint); ok {
		if id, ok := v.(string); ok {
			return id, true
		}
	}
	if r.durable == nil {
		return "", false
	}

	var id string
	err := r.durable.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("fp:" + fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Touch refreshes a session's last-access time, used by the idle sweep.
func (r *Registry) Touch(id string) {
	if h, ok := r.lookupByID(id); ok {
		h.Session.Touch()
	}
}

// Remove destroys and unregisters a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	h, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byIP[h.Session.ClientIP] == id {
			delete(r.byIP, h.Session.ClientIP)
		}
	}
	count := len(r.byID)
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := h.Engine.Destroy(); err != nil {
		r.logger.Warn().Err(err).Str("session", id).Msg("error destroying session")
	}
	metrics.SetSessionsActive(count)
}

const idleSweepInterval = time.Minute

// sweepLoop runs for the registry's lifetime, destroying sessions with no
// clients and no mixer activity past the idle TTL.
func (r *Registry) sweepLoop() {
	interval := r.cfg.SweepInterval
	if interval <= 0 {
		interval = idleSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idleTTL := r.cfg.IdleTimeout
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}

	for {
		select {
		case <-r.closeCh:
			return
		case <-ticker.C:
			r.sweepOnce(idleTTL)
		}
	}
}

func (r *Registry) sweepOnce(idleTTL time.Duration) {
	r.mu.RLock()
	candidates := make([]string, 0, len(r.byID))
	now := time.Now()
	for id, h := range r.byID {
		if h.Session.AudioClientCount == 0 && h.Session.EventClientCount == 0 && now.Sub(h.Session.LastAccessAt) > idleTTL {
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range candidates {
		r.logger.Info().Str("session", id).Msg("idle sweep destroying session")
		r.Remove(id)
	}
}

// Shutdown destroys every session, releases the latent client and durable
// store, and stops the idle sweep.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.closeCh) })

	r.mu.RLock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Remove(id)
	}

	if r.latent != nil {
		if closer, ok := r.latent.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	if closer, ok := r.fingerprint.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	if r.durable != nil {
		return r.durable.Close()
	}
	return nil
}

// Size reports the current number of registered sessions.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// List returns every currently registered handle, for the now-playing and
// internal introspection endpoints. The returned slice is a snapshot; it
// is not kept in sync with subsequent registry mutations.
func (r *Registry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		out = append(out, h)
	}
	return out
}
