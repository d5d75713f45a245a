package model

import "time"

// Session is the state-store record for one listening context. It holds
// only data, never live sinks or goroutines — those are owned by the
// engine actor that wraps a Session.
type Session struct {
	ID          string
	Fingerprint string
	CreatedAt   time.Time
	LastAccessAt time.Time
	IsEphemeral bool
	ClientIP    string

	State SessionState

	CurrentTrack    *Track
	TrackStartedAt  time.Time
	CurrentDirection string

	NextTrack               *Track
	LockedNextID            string
	PendingOverrideID       string
	PendingOverrideDirection string

	History *History

	AudioClientCount int
	EventClientCount int

	LastHeartbeat       *HeartbeatPayload
	LastExplorerSnapshot *Snapshot

	ExplorerResolution ResolutionMode
}

// NewSession creates a fresh session record in the "creating" state.
func NewSession(id, fingerprint, clientIP string, historyCapacity int) *Session {
	now := time.Now()
	return &Session{
		ID:                 id,
		Fingerprint:        fingerprint,
		CreatedAt:          now,
		LastAccessAt:       now,
		ClientIP:           clientIP,
		State:              SessionCreating,
		History:            NewHistory(historyCapacity),
		ExplorerResolution: ResolutionAdaptive,
	}
}

// Touch refreshes LastAccessAt, used by the registry's idle sweep.
func (s *Session) Touch() {
	s.LastAccessAt = time.Now()
}

// HeartbeatPayload is the last broadcast heartbeat, replayed to late
// joiners on attachEventClient.
type HeartbeatPayload struct {
	Type      EventType  `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	SessionID string     `json:"sessionId,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`

	CurrentTrack *HeartbeatTrack `json:"currentTrack,omitempty"`
	Timing       *HeartbeatTiming `json:"timing,omitempty"`
	NextTrack    *HeartbeatNext  `json:"nextTrack,omitempty"`
	Override     *HeartbeatOverride `json:"override,omitempty"`
	Drift        *HeartbeatDrift `json:"drift,omitempty"`
	Session      *HeartbeatSession `json:"session,omitempty"`
}

type HeartbeatTrack struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	StartTime   int64  `json:"startTime"`
	DurationMs  int64  `json:"durationMs"`
}

type HeartbeatTiming struct {
	ElapsedMs   int64 `json:"elapsedMs"`
	RemainingMs int64 `json:"remainingMs"`
}

type HeartbeatNext struct {
	Track     Track  `json:"track"`
	Direction string `json:"direction"`
}

type HeartbeatOverride struct {
	Identifier string          `json:"identifier"`
	Status     SelectionStatus `json:"status"`
	Direction  string          `json:"direction,omitempty"`
}

type HeartbeatDrift struct {
	CurrentDirection string `json:"currentDirection"`
}

type HeartbeatSession struct {
	ID           string `json:"id"`
	AudioClients int    `json:"audioClients"`
	EventClients int    `json:"eventClients"`
}
