package model

// NextPick is the Explorer's recommended next track for a snapshot.
type NextPick struct {
	DirectionKey string `json:"directionKey"`
	Track        Track  `json:"track"`
}

// Snapshot is an immutable view produced by the Explorer: a source track
// plus a map of direction key to candidate list, and one recommended next
// pick. Snapshots are never mutated after construction.
type Snapshot struct {
	CurrentTrack Track                `json:"currentTrack"`
	Directions   map[string]Direction `json:"directions"`
	NextTrack    *NextPick            `json:"nextTrack,omitempty"`
}
