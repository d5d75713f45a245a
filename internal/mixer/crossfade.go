package mixer

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// crossfadeStreamer composes an outgoing and incoming beep.Streamer using
// equal-power (sin/cos) curves, so perceived loudness stays flat across the
// fade instead of dipping as a linear fade would.
type crossfadeStreamer struct {
	out, in    beep.Streamer
	sampleRate beep.SampleRate
	total      int // total samples in the fade window
	pos        int // samples consumed so far
	done       bool
}

func newCrossfadeStreamer(out, in beep.Streamer, rate beep.SampleRate, lead float64) *crossfadeStreamer {
	return &crossfadeStreamer{
		out:        out,
		in:         in,
		sampleRate: rate,
		total:      int(lead * float64(rate)),
	}
}

// Stream implements beep.Streamer. It mixes out and in sample-by-sample
// with equal-power gains until the fade window elapses or the outgoing
// lane exhausts, whichever comes first.
func (c *crossfadeStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if c.done {
		return 0, false
	}

	outBuf := make([][2]float64, len(samples))
	inBuf := make([][2]float64, len(samples))
	outN, outOK := c.out.Stream(outBuf)
	inN, inOK := c.in.Stream(inBuf)

	filled := outN
	if inN > filled {
		filled = inN
	}

	for i := 0; i < filled; i++ {
		progress := float64(c.pos+i) / float64(c.total)
		if progress > 1 {
			progress = 1
		}
		gOut := math.Cos(progress * math.Pi / 2)
		gIn := math.Sin(progress * math.Pi / 2)

		var o, n2 [2]float64
		if i < outN {
			o = outBuf[i]
		}
		if i < inN {
			n2 = inBuf[i]
		}
		samples[i][0] = o[0]*gOut + n2[0]*gIn
		samples[i][1] = o[1]*gOut + n2[1]*gIn
	}

	c.pos += filled
	if c.pos >= c.total || (!outOK && !inOK) {
		c.done = true
	}
	if filled == 0 {
		return 0, false
	}
	return filled, true
}

func (c *crossfadeStreamer) Err() error {
	if err := c.out.Err(); err != nil {
		return err
	}
	return c.in.Err()
}

// Progress reports how far through the fade window playback has advanced,
// in [0, 1].
func (c *crossfadeStreamer) Progress() float64 {
	if c.total == 0 {
		return 1
	}
	p := float64(c.pos) / float64(c.total)
	if p > 1 {
		p = 1
	}
	return p
}

// Finished reports whether the fade window has fully elapsed.
func (c *crossfadeStreamer) Finished() bool {
	return c.done
}
