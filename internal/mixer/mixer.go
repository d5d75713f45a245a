// Package mixer implements the Crossfade Mixer: the two-lane decoder and
// equal-power fader that turns a sequence of tracks into one seamless PCM
// byte stream per session.
package mixer

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/metrics"
	"github.com/rs/zerolog"
)

const framesPerPump = 512

// Mixer owns a single PCM output stream for one session. It maintains up
// to two decode lanes (current and next) and composes them through an
// equal-power crossfadeStreamer when a transition is underway.
type Mixer struct {
	logger   zerolog.Logger
	leadTime time.Duration

	mu          sync.Mutex
	current     *lane
	next        *lane
	fade        *crossfadeStreamer
	crossfading bool

	sinks   map[int]ports.AudioSink
	nextID  int

	onTransition []func()
	onCommit     []func(track model.Track)
	onIdle       []func()

	closeCh chan struct{}
	closed  bool
}

// New creates a Mixer idle until Start is called.
func New(logger zerolog.Logger, leadTime time.Duration) *Mixer {
	m := &Mixer{
		logger:   logger.With().Str("component", "mixer").Logger(),
		leadTime: leadTime,
		sinks:    make(map[int]ports.AudioSink),
		closeCh:  make(chan struct{}),
	}
	go m.pump()
	return m
}

var _ ports.Mixer = (*Mixer)(nil)

// Start begins lane A from the beginning of track.
func (m *Mixer) Start(ctx context.Context, track model.Track) error {
	streamer, err := decodeFile(track.Path)
	if err != nil {
		return fmt.Errorf("decode-failed(%s): %w", track.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.close()
	}
	m.current = &lane{state: lanePlaying, track: track, streamer: streamer}
	m.next = nil
	m.fade = nil
	m.crossfading = false
	return nil
}

// SetNext loads track into the empty lane. Legal only while playing and
// the other lane is empty (invariant enforced by the session engine before
// calling this, and re-checked here).
func (m *Mixer) SetNext(ctx context.Context, track model.Track) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid-argument: mixer has no current lane")
	}
	if m.next != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid-argument: next lane already occupied")
	}
	m.mu.Unlock()

	streamer, err := decodeFile(track.Path)
	if err != nil {
		return fmt.Errorf("decode-failed(%s): %w", track.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next != nil {
		streamer.Close()
		return fmt.Errorf("invalid-argument: next lane already occupied")
	}
	m.next = &lane{state: laneLoading, track: track, streamer: streamer}
	return nil
}

// ClearNextSlot drops a loaded-but-not-started lane. Legal only when the
// mixer is not mid-crossfade.
func (m *Mixer) ClearNextSlot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.crossfading {
		return fmt.Errorf("invalid-argument: cannot clear next slot while crossfading")
	}
	if m.next != nil {
		m.next.close()
		m.next = nil
	}
	return nil
}

// TriggerTransition forces the crossfade to begin now instead of waiting
// for the natural lead-time boundary.
func (m *Mixer) TriggerTransition() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.next == nil {
		return fmt.Errorf("invalid-argument: no prepared next track to transition into")
	}
	m.beginCrossfadeLocked()
	return nil
}

// beginCrossfadeLocked must be called with mu held.
func (m *Mixer) beginCrossfadeLocked() {
	if m.crossfading || m.next == nil {
		return
	}
	m.fade = newCrossfadeStreamer(m.current.streamer, m.next.streamer, outputFormat.SampleRate, m.leadTime.Seconds())
	m.current.state = laneFadingOut
	m.next.state = lanePlaying
	m.crossfading = true

	callbacks := append([]func(){}, m.onTransition...)
	go func() {
		for _, cb := range callbacks {
			cb()
		}
	}()
}

// Status reports the current lane occupancy and position.
func (m *Mixer) Status() ports.MixerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := ports.MixerStatus{IsCrossfading: m.crossfading}
	if m.current != nil {
		t := m.current.track
		status.CurrentLaneTrack = &t
		status.LanePositionMs = int64(float64(m.current.streamer.Position()) / float64(outputFormat.SampleRate) * 1000)
	}
	if m.next != nil {
		t := m.next.track
		status.NextLaneTrack = &t
	}
	return status
}

// OnTransitionStarted registers a callback invoked once per crossfade, at
// the instant the fade begins.
func (m *Mixer) OnTransitionStarted(cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = append(m.onTransition, cb)
}

// OnTrackCommitted registers a callback invoked exactly once per natural
// or forced transition.
func (m *Mixer) OnTrackCommitted(cb func(track model.Track)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCommit = append(m.onCommit, cb)
}

// OnIdle registers a callback invoked when both lanes go empty.
func (m *Mixer) OnIdle(cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onIdle = append(m.onIdle, cb)
}

// AddSink registers a PCM sink to receive the broadcast stream.
func (m *Mixer) AddSink(sink ports.AudioSink) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.sinks[id] = sink
	return id, nil
}

// RemoveSink unregisters a previously-added sink.
func (m *Mixer) RemoveSink(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sinks, id)
}

// Close releases both lanes, stops the pump loop, and drops all sinks.
func (m *Mixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.current != nil {
		m.current.close()
	}
	if m.next != nil {
		m.next.close()
	}
	m.sinks = map[int]ports.AudioSink{}
	m.mu.Unlock()
	close(m.closeCh)
	return nil
}

// pump runs on its own goroutine for the mixer's lifetime, decoding frames
// and broadcasting PCM bytes at roughly real-time pace.
func (m *Mixer) pump() {
	ticker := time.NewTicker(frameInterval())
	defer ticker.Stop()

	samples := make([][2]float64, framesPerPump)
	for {
		select {
		case <-m.closeCh:
			return
		case <-ticker.C:
			m.tick(samples)
		}
	}
}

func (m *Mixer) tick(samples [][2]float64) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}

	var n int
	var ok bool
	if m.crossfading && m.fade != nil {
		n, ok = m.fade.Stream(samples)
		if m.fade.Finished() {
			m.completeCrossfadeLocked()
		}
	} else {
		n, ok = m.current.streamer.Stream(samples)
		if ok {
			m.maybeBeginNaturalCrossfadeLocked()
		}
	}

	if !ok && n == 0 {
		if m.current != nil {
			m.current.close()
			m.current = nil
		}
		callbacks := append([]func(){}, m.onIdle...)
		m.mu.Unlock()
		for _, cb := range callbacks {
			cb()
		}
		return
	}

	sinks := make([]ports.AudioSink, 0, len(m.sinks))
	ids := make([]int, 0, len(m.sinks))
	for id, s := range m.sinks {
		sinks = append(sinks, s)
		ids = append(ids, id)
	}
	m.mu.Unlock()

	frame := encodePCM(samples[:n])
	for i, s := range sinks {
		if err := s.WritePCM(frame); err != nil {
			m.RemoveSink(ids[i])
		}
	}
}

// maybeBeginNaturalCrossfadeLocked starts the fade once the current lane
// is within leadTime of its end, if a next lane is ready. Must be called
// with mu held.
func (m *Mixer) maybeBeginNaturalCrossfadeLocked() {
	if m.next == nil || m.crossfading || m.current.streamer.Len() <= 0 {
		return
	}
	remaining := m.current.streamer.Len() - m.current.streamer.Position()
	remainingDur := time.Duration(float64(remaining) / float64(outputFormat.SampleRate) * float64(time.Second))
	if remainingDur <= m.leadTime {
		m.beginCrossfadeLocked()
	}
}

// completeCrossfadeLocked finalizes a transition: the incoming lane becomes
// current, the outgoing lane is released, and onTrackCommitted fires.
// Must be called with mu held; invokes callbacks after releasing mu.
func (m *Mixer) completeCrossfadeLocked() {
	old := m.current
	m.current = m.next
	m.current.state = lanePlaying
	m.next = nil
	m.fade = nil
	m.crossfading = false
	track := m.current.track
	callbacks := append([]func(model.Track){}, m.onCommit...)
	metrics.ObserveCrossfadeDuration(m.leadTime.Seconds())

	m.mu.Unlock()
	if old != nil {
		old.close()
	}
	for _, cb := range callbacks {
		cb(track)
	}
	m.mu.Lock()
}

func frameInterval() time.Duration {
	return time.Duration(float64(framesPerPump) / float64(outputFormat.SampleRate) * float64(time.Second))
}

// encodePCM converts float64 stereo samples in [-1, 1] to interleaved
// signed 16-bit little-endian PCM, the stream endpoint's wire format.
func encodePCM(samples [][2]float64) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		l := clampSample(s[0])
		r := clampSample(s[1])
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(r))
	}
	return buf
}

func clampSample(v float64) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(v * math.MaxInt16))
}
