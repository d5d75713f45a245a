package explorer

import (
	"testing"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() []model.Track {
	return []model.Track{
		{ID: "seed", Artist: "Artist A", Features: map[string]float64{"tempo": 0.5, "tonal_pc1": 0.0}},
		{ID: "fast1", Artist: "Artist B", Features: map[string]float64{"tempo": 0.7, "tonal_pc1": 0.1}},
		{ID: "fast2", Artist: "Artist C", Features: map[string]float64{"tempo": 0.9, "tonal_pc1": -0.1}},
		{ID: "slow1", Artist: "Artist D", Features: map[string]float64{"tempo": 0.2, "tonal_pc1": 0.05}},
		{ID: "nodata", Artist: "Artist E", Features: map[string]float64{}},
	}
}

func TestSnapshot_UnknownSourceFails(t *testing.T) {
	ix := index.New(sampleCatalog())
	e := New(ix)
	_, err := e.Snapshot("missing", Filters{}, model.ResolutionAdaptive)
	require.Error(t, err)
}

func TestSnapshot_StripsHeavyFields(t *testing.T) {
	ix := index.New(sampleCatalog())
	e := New(ix)
	snap, err := e.Snapshot("seed", Filters{}, model.ResolutionAdaptive)
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentTrack.Features)
}

func TestSnapshot_ExcludeIDsAreDropped(t *testing.T) {
	ix := index.New(sampleCatalog())
	e := New(ix)
	snap, err := e.Snapshot("seed", Filters{ExcludeIDs: map[string]struct{}{"fast1": {}}}, model.ResolutionAdaptive)
	require.NoError(t, err)
	for _, dir := range snap.Directions {
		for _, t2 := range dir.SampleTracks {
			assert.NotEqual(t, "fast1", t2.ID)
		}
	}
}

func TestSnapshot_IsPureAcrossRepeatedCalls(t *testing.T) {
	ix := index.New(sampleCatalog())
	e := New(ix)
	first, err := e.Snapshot("seed", Filters{}, model.ResolutionAdaptive)
	require.NoError(t, err)
	second, err := e.Snapshot("seed", Filters{}, model.ResolutionAdaptive)
	require.NoError(t, err)
	if first.NextTrack != nil {
		require.NotNil(t, second.NextTrack)
		assert.Equal(t, first.NextTrack.DirectionKey, second.NextTrack.DirectionKey)
		assert.Equal(t, first.NextTrack.Track.ID, second.NextTrack.Track.ID)
	}
}
