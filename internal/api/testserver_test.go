package api

import (
	"context"
	"testing"

	"github.com/driftcast/driftcast/internal/bus"
	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/domain/session/registry"
	"github.com/driftcast/driftcast/internal/health"
	"github.com/driftcast/driftcast/internal/index"
	"github.com/rs/zerolog"
)

// fakeMixer is a minimal synchronous ports.Mixer stand-in, just enough to
// satisfy the engine's lifecycle calls without decoding real audio.
type fakeMixer struct {
	current *model.Track
}

func (f *fakeMixer) Start(ctx context.Context, track model.Track) error {
	f.current = &track
	return nil
}
func (f *fakeMixer) SetNext(ctx context.Context, track model.Track) error { return nil }
func (f *fakeMixer) ClearNextSlot() error                                 { return nil }
func (f *fakeMixer) TriggerTransition() error                             { return nil }
func (f *fakeMixer) Status() ports.MixerStatus                            { return ports.MixerStatus{} }
func (f *fakeMixer) OnTransitionStarted(cb func())                        {}
func (f *fakeMixer) OnTrackCommitted(cb func(track model.Track))          {}
func (f *fakeMixer) OnIdle(cb func())                                     {}
func (f *fakeMixer) AddSink(sink ports.AudioSink) (int, error)            { return 1, nil }
func (f *fakeMixer) RemoveSink(id int)                                    {}
func (f *fakeMixer) Close() error                                         { return nil }

// fakeLatent answers every call with backend-unavailable; none of the
// HTTP surface's tested paths reach the latent client directly.
type fakeLatent struct{}

func (fakeLatent) Encode(ctx context.Context, features map[string]float64) ([]float64, error) {
	return nil, ports.ErrBackendUnavailable
}
func (fakeLatent) Decode(ctx context.Context, latent []float64) (map[string]float64, error) {
	return nil, ports.ErrBackendUnavailable
}
func (fakeLatent) Interpolate(ctx context.Context, a, b []float64, steps int) ([][]float64, error) {
	return nil, ports.ErrBackendUnavailable
}
func (fakeLatent) Flow(ctx context.Context, base []float64, direction string, amount float64) (map[string]float64, error) {
	return nil, ports.ErrBackendUnavailable
}

func sampleTracks() []model.Track {
	return []model.Track{
		{
			ID: "00000000000000000000000000000001", Title: "Aurora", Artist: "Nightdrive", Album: "Neon",
			Duration: 210, Features: map[string]float64{"energy": 0.4, "valence": 0.6},
		},
		{
			ID: "00000000000000000000000000000002", Title: "Borealis", Artist: "Nightdrive", Album: "Neon",
			Duration: 198, Features: map[string]float64{"energy": 0.5, "valence": 0.5},
		},
		{
			ID: "00000000000000000000000000000003", Title: "Cascade", Artist: "Tidewater", Album: "Drift",
			Duration: 240, Features: map[string]float64{"energy": 0.3, "valence": 0.7},
		},
	}
}

// newTestServer builds a fully wired Server over a real Index and
// Registry, backed by fakeMixer/fakeLatent so no real audio decoding or
// subprocess happens. The returned registry is shut down by t.Cleanup.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zerolog.Nop()

	idx := index.New(sampleTracks())
	b := bus.New()

	factory := registry.MixerFactory(func() ports.Mixer { return &fakeMixer{} })
	reg, err := registry.New(logger, config.RegistryConfig{}, idx, fakeLatent{}, b, nil, factory, 0)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })

	healthMgr := health.NewManager("test")
	healthMgr.RegisterChecker(health.NewIndexChecker(idx.Size))

	return NewServer(Deps{
		Logger:   logger,
		Config:   config.AppConfig{},
		Registry: reg,
		Index:    idx,
		Health:   healthMgr,
	})
}
