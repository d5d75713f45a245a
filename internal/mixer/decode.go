package mixer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
)

// outputFormat is the fixed PCM framing the mixer emits to every sink,
// regardless of source file sample rate.
var outputFormat = beep.Format{
	SampleRate:  44100,
	NumChannels: 2,
	Precision:   2,
}

// decodeFile opens path and returns a streamer resampled to outputFormat.
func decodeFile(path string) (beep.StreamSeekCloser, error) {
	f, err := os.Open(path) // #nosec G304 -- path resolved and confined by fsutil upstream
	if err != nil {
		return nil, err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		_ = f.Close()
		return nil, fmt.Errorf("decode-failed: unsupported format %q", path)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decode-failed: %w", err)
	}

	if format.SampleRate == outputFormat.SampleRate {
		return streamer, nil
	}
	resampled := beep.Resample(4, format.SampleRate, outputFormat.SampleRate, streamer)
	return &resampledCloser{Streamer: resampled, closer: streamer}, nil
}

// resampledCloser adapts a resampled beep.Streamer back into a
// StreamSeekCloser by delegating Close to the underlying decoder.
type resampledCloser struct {
	beep.Streamer
	closer beep.StreamSeekCloser
}

func (r *resampledCloser) Err() error { return r.closer.Err() }
func (r *resampledCloser) Len() int   { return r.closer.Len() }
func (r *resampledCloser) Position() int { return r.closer.Position() }
func (r *resampledCloser) Seek(p int) error { return r.closer.Seek(p) }
func (r *resampledCloser) Close() error     { return r.closer.Close() }
