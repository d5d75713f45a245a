package mixer

import (
	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/gopxl/beep/v2"
)

// laneState mirrors the per-lane state machine from the design: a lane
// moves from empty through loading and playing to fading-out and done.
type laneState int

const (
	laneEmpty laneState = iota
	laneLoading
	lanePlaying
	laneFadingOut
	laneDone
)

// lane wraps one decode pipeline: the track it plays and the streamer
// producing its samples.
type lane struct {
	state    laneState
	track    model.Track
	streamer beep.StreamSeekCloser
}

func (l *lane) close() {
	if l.streamer != nil {
		_ = l.streamer.Close()
	}
	l.state = laneEmpty
	l.streamer = nil
	l.track = model.Track{}
}
