// Package explorer computes Neighborhood Snapshots: given a source track
// and a filter set, a map of named directions to candidate tracks plus one
// recommended next pick. Snapshot computation is pure: it never mutates
// the session or the feature index.
package explorer

import (
	"fmt"
	"sort"
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/metrics"
)

const sampleSize = 5

// coreDirections are the always-enabled semantic aliases. PCA/latent axis
// families are discovered dynamically from whatever feature components the
// source track carries.
var coreDirections = []string{"faster", "slower", "brighter", "darker", "denser", "sparser"}

// Filters narrows a snapshot: excludeIDs are dropped outright, while
// dampenArtistsAlbums are deprioritized but not removed.
type Filters struct {
	ExcludeIDs          map[string]struct{}
	DampenArtistsAlbums map[string]struct{}
}

// Explorer computes snapshots over a shared, read-only feature index.
type Explorer struct {
	index ports.Index
}

// New builds an Explorer over the given index.
func New(idx ports.Index) *Explorer {
	return &Explorer{index: idx}
}

// Snapshot resolves sourceID and returns the neighborhood snapshot, or
// ports.ErrNotFound wrapped with "source-not-found" semantics if the id is
// unknown.
func (e *Explorer) Snapshot(sourceID string, filters Filters, resolution model.ResolutionMode) (model.Snapshot, error) {
	started := time.Now()
	defer func() {
		metrics.IncExplorerSnapshot()
		metrics.ObserveExplorerSnapshotSeconds(time.Since(started).Seconds())
	}()

	source, err := e.index.GetTrack(sourceID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("source-not-found: %w", err)
	}

	directionKeys := e.candidateDirectionKeys(source)

	directions := make(map[string]model.Direction, len(directionKeys))
	for _, key := range directionKeys {
		candidates, err := e.index.DirectionSearch(source, key, ports.DirectionSearchConfig{
			MinAdvance:       minAdvanceFor(resolution),
			OrthogonalRadius: orthogonalRadiusFor(resolution),
			Limit:            sampleSize,
		})
		if err != nil || len(candidates) == 0 {
			continue
		}

		prioritized, deprioritized := partition(candidates, filters)
		ordered := append(prioritized, deprioritized...)
		if len(ordered) == 0 {
			continue
		}
		if len(ordered) > sampleSize {
			ordered = ordered[:sampleSize]
		}

		dir := model.Direction{
			Key:            key,
			SampleTracks:   scoredTracks(ordered),
			DiversityScore: diversity(ordered),
			TrackCount:     len(candidates),
		}
		if oppKey, ok := model.Opposite(key); ok {
			if oppCandidates, err := e.index.DirectionSearch(source, oppKey, ports.DirectionSearchConfig{
				MinAdvance:       minAdvanceFor(resolution),
				OrthogonalRadius: orthogonalRadiusFor(resolution),
				Limit:            sampleSize,
			}); err == nil && len(oppCandidates) > 0 {
				dir.HasOpposite = true
				dir.OppositeKey = oppKey
				dir.OppositeSamples = scoredTracks(oppCandidates)
			}
		}
		directions[key] = dir
	}

	snap := model.Snapshot{
		CurrentTrack: source.Stripped(),
		Directions:   directions,
	}
	snap.NextTrack = recommendNext(directions)
	return snap, nil
}

// candidateDirectionKeys discovers which direction families the source
// track can be queried on: core semantic aliases plus any PCA/latent
// component the track actually carries, in both polarities.
func (e *Explorer) candidateDirectionKeys(source model.Track) []string {
	keys := append([]string{}, coreDirections...)
	for component := range source.Features {
		keys = append(keys, component+"_positive", component+"_negative")
	}
	return keys
}

func minAdvanceFor(resolution model.ResolutionMode) float64 {
	return 0.02
}

func orthogonalRadiusFor(resolution model.ResolutionMode) float64 {
	return 0.6
}

func partition(candidates []model.Scored, filters Filters) (prioritized, deprioritized []model.Scored) {
	for _, c := range candidates {
		if filters.ExcludeIDs != nil {
			if _, excluded := filters.ExcludeIDs[c.Track.ID]; excluded {
				continue
			}
		}
		dampened := false
		if filters.DampenArtistsAlbums != nil {
			if _, ok := filters.DampenArtistsAlbums[c.Track.Artist]; ok {
				dampened = true
			}
			if _, ok := filters.DampenArtistsAlbums[c.Track.Album]; ok {
				dampened = true
			}
		}
		if dampened {
			deprioritized = append(deprioritized, c)
		} else {
			prioritized = append(prioritized, c)
		}
	}
	return prioritized, deprioritized
}

func scoredTracks(candidates []model.Scored) []model.Track {
	out := make([]model.Track, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Track.Stripped())
	}
	return out
}

// diversity approximates how spread out a candidate set is, used to rank
// directions when picking a recommended next track. Higher is more diverse.
func diversity(candidates []model.Scored) float64 {
	if len(candidates) < 2 {
		return 0
	}
	min, max := candidates[0].Distance, candidates[0].Distance
	for _, c := range candidates[1:] {
		if c.Distance < min {
			min = c.Distance
		}
		if c.Distance > max {
			max = c.Distance
		}
	}
	return max - min
}

// recommendNext picks the highest-diversity direction with non-empty
// candidates; ties break by direction-key name so repeated snapshots over
// an unchanged catalog yield repeatable picks.
func recommendNext(directions map[string]model.Direction) *model.NextPick {
	var keys []string
	for k, d := range directions {
		if len(d.SampleTracks) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := directions[keys[i]], directions[keys[j]]
		if di.DiversityScore != dj.DiversityScore {
			return di.DiversityScore > dj.DiversityScore
		}
		return keys[i] < keys[j]
	})
	best := directions[keys[0]]
	return &model.NextPick{
		DirectionKey: keys[0],
		Track:        best.SampleTracks[0],
	}
}
