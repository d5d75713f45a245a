// Package ports declares the explicit interfaces the session engine drives:
// the crossfade mixer, the feature index, the latent service client and the
// in-process event bus. Each replaces a duck-typed or exception-driven
// contract with conformance declared up front and exhaustively-handled
// result kinds.
package ports

import (
	"context"
	"errors"

	"github.com/driftcast/driftcast/internal/domain/session/model"
)

// Sentinel errors every call site must handle exhaustively instead of
// relying on panics or type-switches to detect capability differences.
var (
	ErrBackendUnavailable = errors.New("backend-unavailable")
	ErrNotFound           = errors.New("not-found")
	ErrInvalidArgument    = errors.New("invalid-argument")
	ErrTimedOut           = errors.New("timed-out")
)

// MixerStatus is a point-in-time read of the mixer's lanes.
type MixerStatus struct {
	IsCrossfading   bool
	CurrentLaneTrack *model.Track
	NextLaneTrack    *model.Track
	LanePositionMs   int64
}

// Mixer owns the audio pipeline for one session: two decode lanes and an
// equal-power crossfade controller. No method is optional; every
// implementation declares full conformance.
type Mixer interface {
	// Start begins lane A from the beginning of track, transitioning idle -> playing-A.
	Start(ctx context.Context, track model.Track) error
	// SetNext loads track into the currently-empty lane. Legal only while
	// playing and the other lane is empty.
	SetNext(ctx context.Context, track model.Track) error
	// ClearNextSlot drops a loaded-but-not-started lane. Legal only when the
	// mixer is not mid-crossfade; callers must check Status().IsCrossfading first.
	ClearNextSlot() error
	// TriggerTransition forces the crossfade to begin now.
	TriggerTransition() error
	// Status reports the current lane occupancy and position.
	Status() MixerStatus
	// OnTransitionStarted registers a callback invoked once per crossfade,
	// at the instant the fade begins (natural boundary or forced).
	OnTransitionStarted(cb func())
	// OnTrackCommitted registers a callback invoked exactly once per natural
	// or forced transition, at the instant the incoming lane becomes current.
	OnTrackCommitted(cb func(track model.Track))
	// OnIdle registers a callback invoked when both lanes are empty and no
	// transition is pending.
	OnIdle(cb func())
	// AddSink registers a PCM sink to receive the broadcast stream.
	AddSink(sink AudioSink) (id int, err error)
	// RemoveSink unregisters a previously-added sink.
	RemoveSink(id int)
	// Close releases both lanes and any sinks.
	Close() error
}

// AudioSink receives raw PCM bytes. A sink that blocks past a small
// threshold is removed from the broadcast set by the mixer; writes to
// other sinks must never be delayed by it.
type AudioSink interface {
	WritePCM(frame []byte) error
}

// EventSink receives line-oriented JSON event frames.
type EventSink interface {
	WriteEvent(frame []byte) error
}

// Index is the read-only, in-memory feature index built once at startup.
type Index interface {
	GetTrack(id string) (model.Track, error)
	RadiusSearch(origin model.Track, radius float64, weights map[string]float64, limit int) ([]model.Scored, error)
	DirectionSearch(origin model.Track, directionKey string, cfg DirectionSearchConfig) ([]model.Scored, error)
	CalibratedSearch(origin model.Track, resolution model.ResolutionMode, limit int) ([]model.Scored, error)
	Size() int
}

// DirectionSearchConfig bounds a directional query.
type DirectionSearchConfig struct {
	MinAdvance      float64
	OrthogonalRadius float64
	Limit           int
}

// LatentClient wraps the external encoder/decoder subprocess. Every method
// may return ErrBackendUnavailable; callers must have a non-latent fallback.
type LatentClient interface {
	Encode(ctx context.Context, features map[string]float64) ([]float64, error)
	Decode(ctx context.Context, latent []float64) (map[string]float64, error)
	Interpolate(ctx context.Context, a, b []float64, steps int) ([][]float64, error)
	Flow(ctx context.Context, base []float64, direction string, amount float64) (map[string]float64, error)
}

// Bus is the in-process publish/subscribe fabric used to fan session
// start/stop intents from the registry to session actors.
type Bus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) (ch <-chan any, cancel func())
}

// PlayStatsRecorder receives best-effort, fire-and-forget play/skip
// notifications from the engine. A nil recorder is valid; callers must
// treat every method as safe to call on it regardless of whether
// persistence is configured.
type PlayStatsRecorder interface {
	RecordPlayed(trackID string)
	RecordSkipped(trackID string)
}

// NormalizeResolution maps every legacy explorer-resolution alias
// (microscope, magnifying, binoculars) onto the single adaptive mode the
// engine actually implements.
func NormalizeResolution(mode string) model.ResolutionMode {
	switch mode {
	case "microscope", "magnifying", "binoculars", "adaptive", "":
		return model.ResolutionAdaptive
	default:
		return model.ResolutionAdaptive
	}
}
