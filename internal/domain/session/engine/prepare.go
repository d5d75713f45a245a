package engine

import (
	"context"
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/metrics"
)

// CommitNextSelection applies a user's next-track choice. The deck fast
// path promotes a track already present in the last issued snapshot
// without re-querying the Feature Index; every other path stashes the
// override and enqueues a prepare-next attempt.
func (e *Engine) CommitNextSelection(trackID string, direction string, origin model.SelectionOrigin) model.SelectionStatus {
	e.mu.Lock()
	alreadyPrepared := e.session.NextTrack != nil && e.session.NextTrack.ID == trackID
	e.mu.Unlock()
	if alreadyPrepared {
		e.ackSelection(trackID, model.SelectionNoop, direction)
		return model.SelectionNoop
	}

	if origin == model.OriginDeck {
		if track, ok := e.findInLastSnapshot(trackID); ok {
			if err := e.mixer.SetNext(context.Background(), track); err != nil {
				e.failSelection(trackID, direction)
				return model.SelectionFailed
			}
			e.mu.Lock()
			e.session.NextTrack = &track
			e.session.CurrentDirection = direction
			e.mu.Unlock()
			e.ackSelection(trackID, model.SelectionPromoted, direction)
			e.emitHeartbeat(model.EventHeartbeat)
			return model.SelectionPromoted
		}
	}

	if _, err := e.index.GetTrack(trackID); err != nil {
		e.failSelection(trackID, direction)
		return model.SelectionFailed
	}

	e.overrideMu.Lock()
	e.mu.Lock()
	e.session.PendingOverrideID = trackID
	e.session.PendingOverrideDirection = direction
	e.mu.Unlock()
	e.overrideMu.Unlock()

	e.ackSelection(trackID, model.SelectionQueued, direction)
	go e.maybePrepareNext()
	return model.SelectionQueued
}

func (e *Engine) findInLastSnapshot(trackID string) (model.Track, bool) {
	e.mu.Lock()
	snap := e.session.LastExplorerSnapshot
	e.mu.Unlock()
	if snap == nil {
		return model.Track{}, false
	}
	if snap.NextTrack != nil && snap.NextTrack.Track.ID == trackID {
		return snap.NextTrack.Track, true
	}
	for _, dir := range snap.Directions {
		for _, t := range dir.SampleTracks {
			if t.ID == trackID {
				return t, true
			}
		}
		for _, t := range dir.OppositeSamples {
			if t.ID == trackID {
				return t, true
			}
		}
	}
	return model.Track{}, false
}

func (e *Engine) ackSelection(trackID string, status model.SelectionStatus, direction string) {
	e.mu.Lock()
	sessionID, fingerprint := e.session.ID, e.session.Fingerprint
	e.mu.Unlock()
	e.broadcast(model.HeartbeatPayload{
		Type:        model.EventSelectionAck,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Override: &model.HeartbeatOverride{
			Identifier: trackID,
			Status:     status,
			Direction:  direction,
		},
	})
}

func (e *Engine) failSelection(trackID string, direction string) {
	e.mu.Lock()
	sessionID, fingerprint := e.session.ID, e.session.Fingerprint
	e.mu.Unlock()
	e.broadcast(model.HeartbeatPayload{
		Type:        model.EventSelectionFailed,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Override: &model.HeartbeatOverride{
			Identifier: trackID,
			Status:     model.SelectionFailed,
			Direction:  direction,
		},
	})
}

// MaybePrepareNext runs the Prepare-Next protocol if the session is in a
// state that can stage a next track. Callers that need a freshly created
// or just-transitioned session to start exploring immediately — rather
// than waiting for a client-driven selection — invoke this directly.
func (e *Engine) MaybePrepareNext() {
	e.maybePrepareNext()
}

// maybePrepareNext runs the Prepare-Next protocol, coalescing concurrent
// callers onto a single inflight attempt via singleflight.
func (e *Engine) maybePrepareNext() {
	e.mu.Lock()
	state := e.session.State
	e.mu.Unlock()
	if state != model.SessionPlaying && state != model.SessionTransitioning {
		return
	}

	_, _, _ = e.sf.Do(e.sessionID(), func() (any, error) {
		outcome := e.prepareNextAttempt()
		metrics.RecordPrepareNext(outcome)
		return nil, nil
	})
}

func (e *Engine) sessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID
}

// prepareNextAttempt executes one pass of the Prepare-Next protocol and
// returns a metrics outcome label.
func (e *Engine) prepareNextAttempt() string {
	status := e.mixer.Status()
	if status.IsCrossfading {
		return "deferred-crossfading"
	}
	if status.NextLaneTrack != nil {
		return "deferred-next-occupied"
	}

	target, directionKey, ok := e.resolveTarget()
	if !ok {
		return "no-candidate"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxPrepareRetries; attempt++ {
		if err := e.mixer.SetNext(ctx, target); err != nil {
			lastErr = err
			next, nextDir, ok := e.nextBestCandidate(target.ID)
			if !ok {
				break
			}
			target, directionKey = next, nextDir
			continue
		}

		e.overrideMu.Lock()
		e.mu.Lock()
		e.session.NextTrack = &target
		e.session.CurrentDirection = directionKey
		if e.session.PendingOverrideID == target.ID {
			// The override is now staged in the mixer's next lane; promote
			// it to locked so onTrackCommitted retires it once it plays
			// instead of resolveTarget re-selecting it forever.
			e.session.LockedNextID = target.ID
			e.session.PendingOverrideID = ""
			e.session.PendingOverrideDirection = ""
		}
		e.mu.Unlock()
		e.overrideMu.Unlock()
		e.emitHeartbeat(model.EventHeartbeat)
		return "ok"
	}

	e.mu.Lock()
	sessionID, fingerprint := e.session.ID, e.session.Fingerprint
	e.mu.Unlock()
	e.broadcast(model.HeartbeatPayload{
		Type:        model.EventNextTrackFailed,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
	})
	if lastErr != nil {
		e.logger.Warn().Err(lastErr).Msg("prepare-next exhausted retries, leaving next lane empty")
	}
	return "failed"
}

// resolveTarget determines the prepare-next target: a locked override id
// if one is set, else a fresh snapshot's recommended next track.
func (e *Engine) resolveTarget() (model.Track, string, bool) {
	e.overrideMu.Lock()
	e.mu.Lock()
	locked := e.session.LockedNextID
	pending := e.session.PendingOverrideID
	pendingDirection := e.session.PendingOverrideDirection
	current := e.session.CurrentTrack
	e.mu.Unlock()
	e.overrideMu.Unlock()

	targetID := locked
	if targetID == "" {
		targetID = pending
	}

	if targetID != "" && targetID != e.lastAttemptedID {
		if track, err := e.index.GetTrack(targetID); err == nil {
			return track, pendingDirection, true
		}
		e.lastAttemptedID = targetID
	}

	if current == nil {
		return model.Track{}, "", false
	}

	e.mu.Lock()
	history := e.session.History
	e.mu.Unlock()

	snap, err := e.explorer.Snapshot(current.ID, explorerFilters(history), e.resolutionMode())
	if err != nil || snap.NextTrack == nil {
		return model.Track{}, "", false
	}
	return snap.NextTrack.Track, snap.NextTrack.DirectionKey, true
}

// nextBestCandidate re-snapshots around the current track, excluding the
// id that just failed to decode, and returns its recommended pick.
func (e *Engine) nextBestCandidate(failedID string) (model.Track, string, bool) {
	e.mu.Lock()
	current := e.session.CurrentTrack
	history := e.session.History
	e.mu.Unlock()
	if current == nil {
		return model.Track{}, "", false
	}

	filters := explorerFilters(history)
	if filters.ExcludeIDs == nil {
		filters.ExcludeIDs = map[string]struct{}{}
	}
	filters.ExcludeIDs[failedID] = struct{}{}

	snap, err := e.explorer.Snapshot(current.ID, filters, e.resolutionMode())
	if err != nil || snap.NextTrack == nil {
		return model.Track{}, "", false
	}
	return snap.NextTrack.Track, snap.NextTrack.DirectionKey, true
}

func (e *Engine) resolutionMode() model.ResolutionMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ExplorerResolution
}

// explorerFilters builds the anonymous filter shape explorer.Filters is
// structurally identical to, so this file needs no direct import of the
// explorer package.
func explorerFilters(history *model.History) struct {
	ExcludeIDs          map[string]struct{}
	DampenArtistsAlbums map[string]struct{}
} {
	return struct {
		ExcludeIDs          map[string]struct{}
		DampenArtistsAlbums map[string]struct{}
	}{ExcludeIDs: history.Set()}
}
