package index

import (
	"testing"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTracks() []model.Track {
	return []model.Track{
		{ID: "a", Title: "A", Features: map[string]float64{"tempo": 0.1, "tonal_pc1": 0.0}},
		{ID: "b", Title: "B", Features: map[string]float64{"tempo": 0.2, "tonal_pc1": 0.1}},
		{ID: "c", Title: "C", Features: map[string]float64{"tempo": 0.9, "tonal_pc1": 0.5}},
		{ID: "d", Title: "D", Features: map[string]float64{"tonal_pc1": 0.2}}, // missing tempo
	}
}

func TestGetTrack_NotFound(t *testing.T) {
	ix := New(fixtureTracks())
	_, err := ix.GetTrack("missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRadiusSearch_ExcludesSelfAndSortsByDistance(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("a")
	require.NoError(t, err)

	res, err := ix.RadiusSearch(origin, 1.0, nil, 0)
	require.NoError(t, err)

	for _, r := range res {
		assert.NotEqual(t, "a", r.Track.ID)
	}
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}
}

func TestRadiusSearch_HonorsLimit(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("a")
	require.NoError(t, err)

	res, err := ix.RadiusSearch(origin, 10, nil, 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestDirectionSearch_IsMonotonicAlongPositiveAxis(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("a")
	require.NoError(t, err)

	res, err := ix.DirectionSearch(origin, "tempo_positive", ports.DirectionSearchConfig{
		MinAdvance:       0.01,
		OrthogonalRadius: 10,
		Limit:            10,
	})
	require.NoError(t, err)

	for _, r := range res {
		assert.NotEqual(t, "a", r.Track.ID)
		assert.NotEqual(t, "d", r.Track.ID, "tracks missing the queried component must never be returned")
	}
}

func TestDirectionSearch_SemanticAliasResolvesToItsComponent(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("a")
	require.NoError(t, err)

	res, err := ix.DirectionSearch(origin, "faster", ports.DirectionSearchConfig{
		MinAdvance:       0.01,
		OrthogonalRadius: 10,
		Limit:            10,
	})
	require.NoError(t, err)

	for _, r := range res {
		assert.NotEqual(t, "a", r.Track.ID)
		assert.NotEqual(t, "d", r.Track.ID, "tracks missing tempo must never be returned for faster/slower")
	}
	assert.NotEmpty(t, res, "faster should project onto tempo and find b and c ahead of a")
}

func TestDirectionSearch_UnknownDirectionKeyErrors(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("a")
	require.NoError(t, err)

	_, err = ix.DirectionSearch(origin, "not-a-real-direction", ports.DirectionSearchConfig{Limit: 5, OrthogonalRadius: 10})
	require.Error(t, err)
}

func TestDirectionSearch_MissingOriginComponentReturnsEmpty(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("d")
	require.NoError(t, err)

	res, err := ix.DirectionSearch(origin, "tempo_positive", ports.DirectionSearchConfig{Limit: 5, OrthogonalRadius: 10})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestCalibratedSearch_ReturnsUpToLimit(t *testing.T) {
	ix := New(fixtureTracks())
	origin, err := ix.GetTrack("a")
	require.NoError(t, err)

	res, err := ix.CalibratedSearch(origin, "adaptive", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res), 2)
}
