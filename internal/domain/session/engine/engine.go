// Package engine implements the Session Engine: the per-session
// coordinator that resolves snapshots, drives the Prepare-Next protocol,
// and fans typed events out to event clients. Each session owns exactly
// one Engine instance; all state mutations for that session go through
// it under a single mutex, a single-writer discipline scoped per session
// instead of process-wide.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/lifecycle"
	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/explorer"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	eventClientBuffer  = 32
	maxPrepareRetries   = 3
	defaultLeadTime     = 3 * time.Second
)

// Engine coordinates one session's mixer, index lookups, explorer queries
// and event fan-out.
type Engine struct {
	logger   zerolog.Logger
	leadTime time.Duration

	mixer    ports.Mixer
	index    ports.Index
	latent   ports.LatentClient
	explorer *explorer.Explorer
	bus      ports.Bus
	persist  ports.PlayStatsRecorder

	mu      sync.Mutex
	session *model.Session

	overrideMu sync.Mutex

	eventMu sync.Mutex
	events  map[int]*eventClient
	nextID  int

	sf singleflight.Group

	lastAttemptedID string // last Feature Index target that resolved unknown, to avoid re-targeting it
}

// eventClient fans a single sink's frames through a bounded buffer so a
// slow consumer cannot stall the broadcast to everyone else.
type eventClient struct {
	ch   chan []byte
	sink ports.EventSink
	done chan struct{}
}

// New creates an Engine for session s, wiring it to the mixer's
// onTrackCommitted/onIdle callbacks. persist may be nil, disabling the
// play-stats side store entirely.
func New(logger zerolog.Logger, s *model.Session, mixer ports.Mixer, index ports.Index, latent ports.LatentClient, bus ports.Bus, persist ports.PlayStatsRecorder, leadTime time.Duration) *Engine {
	if leadTime <= 0 {
		leadTime = defaultLeadTime
	}
	e := &Engine{
		logger:   logger.With().Str("component", "engine").Str("session", s.ID).Logger(),
		leadTime: leadTime,
		mixer:    mixer,
		index:    index,
		latent:   latent,
		explorer: explorer.New(index),
		bus:      bus,
		persist:  persist,
		session:  s,
		events:   make(map[int]*eventClient),
	}
	mixer.OnTransitionStarted(e.onTransitionStarted)
	mixer.OnTrackCommitted(e.onTrackCommitted)
	mixer.OnIdle(e.onIdle)
	return e
}

// onTransitionStarted marks the session transitioning the instant the
// mixer begins a crossfade, whether triggered naturally or forced.
func (e *Engine) onTransitionStarted() {
	e.mu.Lock()
	if e.session.State == model.SessionPlaying {
		_, _ = lifecycle.Dispatch(e.session, lifecycle.EvTransitionStarted)
	}
	e.mu.Unlock()
}

// Bootstrap moves the session from creating to bootstrapping/playing by
// starting the mixer on the seed track.
func (e *Engine) Bootstrap(ctx context.Context, seed model.Track) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := lifecycle.Dispatch(e.session, lifecycle.EvCreated); err != nil {
		return err
	}
	if err := e.mixer.Start(ctx, seed); err != nil {
		return fmt.Errorf("decode-failed: %w", err)
	}
	e.session.CurrentTrack = &seed
	e.session.TrackStartedAt = time.Now()
	if _, err := lifecycle.Dispatch(e.session, lifecycle.EvSeedResolved); err != nil {
		return err
	}
	return nil
}

// AttachAudioClient registers a new PCM sink with the mixer. Streaming
// begins as soon as decoded bytes are available; the call never blocks
// on decode progress.
func (e *Engine) AttachAudioClient(sink ports.AudioSink) (int, error) {
	id, err := e.mixer.AddSink(sink)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.session.AudioClientCount++
	e.mu.Unlock()
	return id, nil
}

// DetachAudioClient unregisters a previously attached PCM sink.
func (e *Engine) DetachAudioClient(id int) {
	e.mixer.RemoveSink(id)
	e.mu.Lock()
	if e.session.AudioClientCount > 0 {
		e.session.AudioClientCount--
	}
	e.mu.Unlock()
}

// AttachEventClient registers a new line-oriented event sink. If the
// session already has a current track, the last heartbeat is replayed
// immediately; otherwise a bootstrap_pending frame is sent.
func (e *Engine) AttachEventClient(sink ports.EventSink) int {
	client := &eventClient{
		ch:   make(chan []byte, eventClientBuffer),
		sink: sink,
		done: make(chan struct{}),
	}

	e.eventMu.Lock()
	id := e.nextID
	e.nextID++
	e.events[id] = client
	e.eventMu.Unlock()

	go e.drainEventClient(id, client)

	e.mu.Lock()
	e.session.EventClientCount++
	var replay *model.HeartbeatPayload
	if e.session.LastHeartbeat != nil && e.session.CurrentTrack != nil {
		replay = e.session.LastHeartbeat
	}
	sessionID, fingerprint := e.session.ID, e.session.Fingerprint
	e.mu.Unlock()

	connected := model.HeartbeatPayload{
		Type:        model.EventConnected,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
	}
	e.sendToClient(id, connected)
	if replay != nil {
		e.sendToClient(id, *replay)
	} else {
		e.sendToClient(id, model.HeartbeatPayload{
			Type:        model.EventBootstrapPending,
			Timestamp:   time.Now(),
			SessionID:   sessionID,
			Fingerprint: fingerprint,
		})
	}

	return id
}

// DetachEventClient unregisters an event sink.
func (e *Engine) DetachEventClient(id int) {
	e.eventMu.Lock()
	client, ok := e.events[id]
	if ok {
		delete(e.events, id)
	}
	e.eventMu.Unlock()
	if ok {
		close(client.done)
	}
	e.mu.Lock()
	if e.session.EventClientCount > 0 {
		e.session.EventClientCount--
	}
	e.mu.Unlock()
}

func (e *Engine) drainEventClient(id int, c *eventClient) {
	for {
		select {
		case frame, ok := <-c.ch:
			if !ok {
				return
			}
			if err := c.sink.WriteEvent(frame); err != nil {
				e.DetachEventClient(id)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (e *Engine) sendToClient(id int, payload model.HeartbeatPayload) {
	frame, err := json.Marshal(payload)
	if err != nil {
		return
	}
	e.eventMu.Lock()
	client, ok := e.events[id]
	e.eventMu.Unlock()
	if !ok {
		return
	}
	select {
	case client.ch <- frame:
	default:
		e.DetachEventClient(id)
	}
}

// broadcast sends payload to every attached event client. A client whose
// buffer is full is dropped rather than slowing the others.
func (e *Engine) broadcast(payload model.HeartbeatPayload) {
	frame, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to marshal event frame")
		return
	}

	e.eventMu.Lock()
	ids := make([]int, 0, len(e.events))
	clients := make([]*eventClient, 0, len(e.events))
	for id, c := range e.events {
		ids = append(ids, id)
		clients = append(clients, c)
	}
	e.eventMu.Unlock()

	for i, c := range clients {
		select {
		case c.ch <- frame:
		default:
			e.DetachEventClient(ids[i])
		}
	}
}

// RequestSnapshot resolves sourceID and returns the neighborhood
// snapshot. It never mutates session state.
func (e *Engine) RequestSnapshot(sourceID string, excludeIDs map[string]struct{}, dampenArtistsAlbums map[string]struct{}) (model.Snapshot, error) {
	e.mu.Lock()
	resolution := e.session.ExplorerResolution
	e.mu.Unlock()

	snap, err := e.explorer.Snapshot(sourceID, explorer.Filters{
		ExcludeIDs:          excludeIDs,
		DampenArtistsAlbums: dampenArtistsAlbums,
	}, resolution)
	if err != nil {
		return model.Snapshot{}, err
	}

	e.mu.Lock()
	cp := snap
	e.session.LastExplorerSnapshot = &cp
	e.mu.Unlock()
	return snap, nil
}

// SetResolution changes the explorer resolution knob. If it changed, a
// fresh heartbeat is broadcast.
func (e *Engine) SetResolution(mode string) {
	resolved := ports.NormalizeResolution(mode)

	e.mu.Lock()
	changed := e.session.ExplorerResolution != resolved
	e.session.ExplorerResolution = resolved
	e.mu.Unlock()

	if changed {
		e.emitHeartbeat(model.EventHeartbeat)
	}
}

// ResetOverride clears any pending or locked user selection.
func (e *Engine) ResetOverride() {
	e.overrideMu.Lock()
	defer e.overrideMu.Unlock()

	e.mu.Lock()
	e.session.LockedNextID = ""
	e.session.PendingOverrideID = ""
	e.session.PendingOverrideDirection = ""
	e.mu.Unlock()
}

// ForceNext delegates to the mixer's triggerTransition. The current track
// is recorded as skipped since it is being cut off before its natural end.
func (e *Engine) ForceNext() error {
	e.mu.Lock()
	current := e.session.CurrentTrack
	e.mu.Unlock()
	if current != nil && e.persist != nil {
		e.persist.RecordSkipped(current.ID)
	}
	return e.mixer.TriggerTransition()
}

// Destroy tears down the mixer, sends a terminal bye frame to every
// event client, and marks the session dead.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	sessionID, fingerprint := e.session.ID, e.session.Fingerprint
	e.mu.Unlock()

	e.broadcast(model.HeartbeatPayload{
		Type:        model.EventBye,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
	})

	e.eventMu.Lock()
	for id, c := range e.events {
		close(c.done)
		delete(e.events, id)
	}
	e.eventMu.Unlock()

	err := e.mixer.Close()

	e.mu.Lock()
	_, dispatchErr := lifecycle.Dispatch(e.session, lifecycle.EvShutdown)
	e.mu.Unlock()
	if dispatchErr != nil {
		e.logger.Warn().Err(dispatchErr).Msg("lifecycle dispatch failed during destroy")
	}

	return err
}

func (e *Engine) onIdle() {
	e.logger.Debug().Msg("mixer idle, both lanes empty")
}
