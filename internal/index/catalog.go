package index

import (
	"crypto/md5" // #nosec G501 -- content-addressing, not a security boundary
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/fsutil"
	"github.com/driftcast/driftcast/internal/metrics"
	"github.com/rs/zerolog"
)

// BuildFromCatalogRoot walks root for files matching extensions, reads
// embedded tags, and returns the catalog as a slice of Tracks keyed by a
// content-hash identifier. Acoustic feature vectors are not recoverable
// from tags alone; callers populate Features separately (e.g. from a
// feature-extraction sidecar or the persistence layer) after ingestion.
func BuildFromCatalogRoot(logger zerolog.Logger, root string, extensions []string) ([]model.Track, error) {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	var tracks []model.Track
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := allowed[ext]; !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		confined, err := fsutil.ConfineRelPath(root, rel)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping catalog entry outside library root")
			return nil
		}

		track, err := readTrack(confined, rel)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to read track metadata")
			metrics.IncIndexLoadError()
			return nil
		}
		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

// LoadFeatureSidecar reads a JSON file mapping track id to a named
// component vector (e.g. {"<id>": {"tempo": 0.62, "centroid": 0.41}}) and
// merges it into tracks in place. Feature extraction itself runs
// out-of-process; this is only the handoff point. Ids present in the
// sidecar but absent from tracks are ignored; tracks absent from the
// sidecar keep an empty Features map and are excluded from any distance
// computation that needs the missing components.
func LoadFeatureSidecar(path string, tracks []model.Track) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from trusted server configuration
	if err != nil {
		return err
	}
	defer f.Close()

	var vectors map[string]map[string]float64
	if err := json.NewDecoder(f).Decode(&vectors); err != nil {
		return err
	}

	byID := make(map[string]int, len(tracks))
	for i, t := range tracks {
		byID[t.ID] = i
	}
	for id, components := range vectors {
		i, ok := byID[id]
		if !ok {
			continue
		}
		tracks[i].Features = components
	}
	return nil
}

func readTrack(path, relPath string) (model.Track, error) {
	f, err := os.Open(path) // #nosec G304 -- path confined to library root by fsutil
	if err != nil {
		return model.Track{}, err
	}
	defer f.Close()

	id, err := hashFile(f)
	if err != nil {
		return model.Track{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return model.Track{}, err
	}

	track := model.Track{
		ID:       id,
		Path:     path,
		Title:    strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath)),
		Features: map[string]float64{},
	}

	meta, err := tag.ReadFrom(f)
	if err != nil {
		// Missing or unreadable tags are not fatal: the file still has a
		// stable identity and can still be streamed.
		return track, nil
	}

	if title := meta.Title(); title != "" {
		track.Title = title
	}
	track.Artist = meta.Artist()
	track.Album = meta.Album()
	track.Year = meta.Year()
	if pic := meta.Picture(); pic != nil {
		track.CoverURL = "embedded://" + id
	}

	return track, nil
}

func hashFile(r io.Reader) (string, error) {
	h := md5.New() // #nosec G401 -- content fingerprint, not a security boundary
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
