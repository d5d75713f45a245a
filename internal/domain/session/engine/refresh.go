package engine

import (
	"fmt"
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/model"
)

// Refresh re-synchronizes a session's event stream without touching the
// audio pipeline. It backs the three stages of the refresh-sse endpoint:
//
//   - "rebroadcast" resends the last cached heartbeat to every attached
//     event client, for a client that thinks it missed a frame.
//   - "session" rebuilds a fresh heartbeat from current session state
//     (rather than replaying the cached one) and broadcasts it.
//   - "restart" re-sends the connected/bootstrap handshake sequence a
//     newly attached client would see, so the caller's event stream can
//     resync from scratch without a full session reattach.
func (e *Engine) Refresh(stage string) error {
	switch stage {
	case "rebroadcast":
		e.mu.Lock()
		cached := e.session.LastHeartbeat
		e.mu.Unlock()
		if cached != nil {
			e.broadcast(*cached)
		}
		return nil

	case "session":
		e.emitHeartbeat(model.EventHeartbeat)
		return nil

	case "restart":
		e.mu.Lock()
		sessionID, fingerprint := e.session.ID, e.session.Fingerprint
		hasTrack := e.session.CurrentTrack != nil
		e.mu.Unlock()

		e.broadcast(model.HeartbeatPayload{
			Type:        model.EventConnected,
			Timestamp:   time.Now(),
			SessionID:   sessionID,
			Fingerprint: fingerprint,
		})
		if hasTrack {
			e.emitHeartbeat(model.EventHeartbeat)
		} else {
			e.broadcast(model.HeartbeatPayload{
				Type:        model.EventBootstrapPending,
				Timestamp:   time.Now(),
				SessionID:   sessionID,
				Fingerprint: fingerprint,
			})
		}
		return nil

	default:
		return fmt.Errorf("invalid-argument: unknown refresh stage %q", stage)
	}
}
