package engine

import (
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/lifecycle"
	"github.com/driftcast/driftcast/internal/domain/session/model"
)

// buildHeartbeatLocked assembles the wire-format heartbeat payload from the
// session's current state. Must be called with e.mu held.
func (e *Engine) buildHeartbeatLocked(kind model.EventType) model.HeartbeatPayload {
	payload := model.HeartbeatPayload{
		Type:        kind,
		Timestamp:   time.Now(),
		SessionID:   e.session.ID,
		Fingerprint: e.session.Fingerprint,
		Session: &model.HeartbeatSession{
			ID:           e.session.ID,
			AudioClients: e.session.AudioClientCount,
			EventClients: e.session.EventClientCount,
		},
	}

	if e.session.CurrentTrack != nil {
		t := e.session.CurrentTrack
		elapsed := time.Since(e.session.TrackStartedAt)
		durationMs := int64(t.Duration * 1000)
		remainingMs := durationMs - elapsed.Milliseconds()
		if remainingMs < 0 {
			remainingMs = 0
		}
		payload.CurrentTrack = &model.HeartbeatTrack{
			Identifier: t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			StartTime:  e.session.TrackStartedAt.UnixMilli(),
			DurationMs: durationMs,
		}
		payload.Timing = &model.HeartbeatTiming{
			ElapsedMs:   elapsed.Milliseconds(),
			RemainingMs: remainingMs,
		}
	}

	if e.session.NextTrack != nil {
		payload.NextTrack = &model.HeartbeatNext{
			Track:     e.session.NextTrack.Stripped(),
			Direction: e.session.CurrentDirection,
		}
	}

	if e.session.PendingOverrideID != "" || e.session.LockedNextID != "" {
		id := e.session.LockedNextID
		if id == "" {
			id = e.session.PendingOverrideID
		}
		payload.Override = &model.HeartbeatOverride{
			Identifier: id,
			Status:     model.SelectionQueued,
			Direction:  e.session.PendingOverrideDirection,
		}
	}

	payload.Drift = &model.HeartbeatDrift{CurrentDirection: e.session.CurrentDirection}
	return payload
}

// emitHeartbeat builds and broadcasts a heartbeat, caching it for replay
// to late-joining event clients.
func (e *Engine) emitHeartbeat(kind model.EventType) {
	e.mu.Lock()
	payload := e.buildHeartbeatLocked(kind)
	cp := payload
	e.session.LastHeartbeat = &cp
	e.mu.Unlock()

	e.broadcast(payload)
}

// HeartbeatSync is a client-initiated liveness check. It does not by
// itself change session state. clientNextID is not compared against the
// session's next track; the returned payload's Drift field carries only
// the current direction.
func (e *Engine) HeartbeatSync(clientNextID string) model.HeartbeatPayload {
	e.mu.Lock()
	payload := e.buildHeartbeatLocked(model.EventHeartbeat)
	e.mu.Unlock()
	return payload
}

// onTrackCommitted is the mixer callback invoked exactly once per
// committed transition. It is the only place history is appended, so it
// reflects what the client actually heard.
func (e *Engine) onTrackCommitted(track model.Track) {
	if e.persist != nil {
		e.persist.RecordPlayed(track.ID)
	}

	e.mu.Lock()
	e.session.History.Append(track.ID)
	e.session.CurrentTrack = &track
	e.session.TrackStartedAt = time.Now()
	e.session.NextTrack = nil
	if e.session.LockedNextID == track.ID {
		e.session.LockedNextID = ""
	}
	sessionID, fingerprint := e.session.ID, e.session.Fingerprint
	e.mu.Unlock()

	e.mu.Lock()
	if e.session.State == model.SessionTransitioning {
		_, _ = lifecycle.Dispatch(e.session, lifecycle.EvTransitionDone)
	}
	e.mu.Unlock()

	e.broadcast(model.HeartbeatPayload{
		Type:        model.EventTrackStarted,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		CurrentTrack: &model.HeartbeatTrack{
			Identifier: track.ID,
			Title:      track.Title,
			Artist:     track.Artist,
			StartTime:  time.Now().UnixMilli(),
			DurationMs: int64(track.Duration * 1000),
		},
	})
	e.emitHeartbeat(model.EventHeartbeat)

	go e.maybePrepareNext()
}
