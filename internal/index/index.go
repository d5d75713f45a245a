// Package index implements the Feature Index: an in-memory, read-only
// catalog of tracks supporting radius-limited nearest-neighbor and
// direction-constrained queries over a weighted acoustic feature space.
package index

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/metrics"
)

// Index is the flat-slice, id-mapped feature store. It is built once and
// shared read-only across every session; no method mutates it.
type Index struct {
	mu     sync.RWMutex
	tracks []model.Track
	byID   map[string]int
}

// New builds an index over a fixed set of tracks.
func New(tracks []model.Track) *Index {
	byID := make(map[string]int, len(tracks))
	for i, t := range tracks {
		byID[t.ID] = i
	}
	metrics.SetIndexTracksTotal(len(tracks))
	return &Index{tracks: tracks, byID: byID}
}

// Size returns the number of tracks currently loaded.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.tracks)
}

// GetTrack resolves a track by its 32-hex identifier.
func (ix *Index) GetTrack(id string) (model.Track, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, ok := ix.byID[id]
	if !ok {
		return model.Track{}, fmt.Errorf("%w: track %q", ports.ErrNotFound, id)
	}
	return ix.tracks[i], nil
}

// RandomTrack returns an arbitrary track, used to seed a brand new
// session that arrived with no explicit starting point (the plain "/"
// entry point).
func (ix *Index) RandomTrack() (model.Track, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.tracks) == 0 {
		return model.Track{}, false
	}
	return ix.tracks[rand.Intn(len(ix.tracks))], true //nolint:gosec // seed selection has no security relevance
}

// Search returns tracks whose title, artist or album contains q
// (case-insensitive), ranked title-match first, then artist, then album,
// capped at limit. An empty q matches nothing; deep-link and direct-id
// lookups go through GetTrack instead.
func (ix *Index) Search(q string, limit int) []model.Track {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type hit struct {
		track model.Track
		rank  int
	}
	var hits []hit
	for _, t := range ix.tracks {
		switch {
		case strings.Contains(strings.ToLower(t.Title), q):
			hits = append(hits, hit{t, 0})
		case strings.Contains(strings.ToLower(t.Artist), q):
			hits = append(hits, hit{t, 1})
		case strings.Contains(strings.ToLower(t.Album), q):
			hits = append(hits, hit{t, 2})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.Track, len(hits))
	for i, h := range hits {
		out[i] = h.track.Stripped()
	}
	return out
}

// RadiusSearch returns tracks within radius of origin in the weighted
// feature space, sorted ascending by distance, self excluded.
func (ix *Index) RadiusSearch(origin model.Track, radius float64, weights map[string]float64, limit int) ([]model.Scored, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []model.Scored
	for _, t := range ix.tracks {
		if t.ID == origin.ID {
			continue
		}
		d, ok := weightedDistance(origin, t, weights)
		if !ok || d > radius {
			continue
		}
		out = append(out, model.Scored{Track: t, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DirectionSearch returns tracks whose projection onto directionKey's
// underlying component is strictly further along than origin's, within an
// orthogonal-radius bound. Monotonic: never returns origin or points
// behind it along the axis.
func (ix *Index) DirectionSearch(origin model.Track, directionKey string, cfg ports.DirectionSearchConfig) ([]model.Scored, error) {
	component, positive, ok := model.ComponentOf(directionKey)
	if !ok {
		return nil, fmt.Errorf("index: unknown direction key %q", directionKey)
	}

	originVal, originHas := origin.Feature(component)
	if !originHas {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []model.Scored
	for _, t := range ix.tracks {
		if t.ID == origin.ID {
			continue
		}
		val, has := t.Feature(component)
		if !has {
			continue
		}
		advance := val - originVal
		if !positive {
			advance = -advance
		}
		if advance < cfg.MinAdvance {
			continue
		}

		orth, ok := orthogonalDistance(origin, t, component)
		if !ok || orth > cfg.OrthogonalRadius {
			continue
		}

		out = append(out, model.Scored{Track: t, Distance: orth})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	limit := cfg.Limit
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CalibratedSearch picks a radius adaptively from local density so each
// direction yields roughly the same candidate count regardless of where
// origin sits in the space.
func (ix *Index) CalibratedSearch(origin model.Track, resolution model.ResolutionMode, limit int) ([]model.Scored, error) {
	ix.mu.RLock()
	n := len(ix.tracks)
	ix.mu.RUnlock()
	if n == 0 {
		return nil, nil
	}

	target := limit
	if target <= 0 {
		target = 5
	}

	radius := 0.25
	const maxIterations = 8
	var results []model.Scored
	for i := 0; i < maxIterations; i++ {
		res, err := ix.RadiusSearch(origin, radius, nil, 0)
		if err != nil {
			return nil, err
		}
		results = res
		if len(results) >= target {
			break
		}
		radius *= 1.8
	}
	if len(results) > target {
		results = results[:target]
	}
	return results, nil
}

func weightedDistance(a, b model.Track, weights map[string]float64) (float64, bool) {
	sum := 0.0
	used := 0
	for name, av := range a.Features {
		bv, ok := b.Features[name]
		if !ok {
			continue
		}
		w := 1.0
		if weights != nil {
			if wv, ok := weights[name]; ok {
				w = wv
			}
		}
		d := av - bv
		sum += w * d * d
		used++
	}
	if used == 0 {
		return 0, false
	}
	return math.Sqrt(sum), true
}

// orthogonalDistance computes distance over every shared component except
// the one driving the directional axis, so direction search bounds drift
// perpendicular to the direction being queried.
func orthogonalDistance(a, b model.Track, excludeComponent string) (float64, bool) {
	sum := 0.0
	used := 0
	for name, av := range a.Features {
		if name == excludeComponent {
			continue
		}
		bv, ok := b.Features[name]
		if !ok {
			continue
		}
		d := av - bv
		sum += d * d
		used++
	}
	if used == 0 {
		return 0, true
	}
	return math.Sqrt(sum), true
}
