package latent

import (
	"context"
	"testing"
	"time"

	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoScript is a minimal stand-in latent service: it reads one JSON
// request per line and echoes back a canned "encode" result carrying the
// same request id, regardless of the requested operation.
const echoScript = `while IFS= read -r line; do
  id=$(echo "$line" | sed -E 's/.*"id":([0-9]+).*/\1/')
  echo "{\"id\":$id,\"result\":{\"latent\":[0.1,0.2]}}"
done`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.LatentConfig{
		Command:        "/bin/sh",
		Args:           []string{"-c", echoScript},
		RequestTimeout: 2 * time.Second,
		BreakerWindow:  time.Minute,
	}
	c, err := New(zerolog.Nop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientEncodeRoundTrip(t *testing.T) {
	c := newTestClient(t)
	latent, err := c.Encode(context.Background(), map[string]float64{"tempo": 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, latent)
}

func TestClientNoCommandConfiguredFallsBack(t *testing.T) {
	c, err := New(zerolog.Nop(), config.LatentConfig{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Encode(context.Background(), map[string]float64{"tempo": 0.5})
	assert.ErrorIs(t, err, ports.ErrBackendUnavailable)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestClientTimeoutReturnsBackendUnavailable(t *testing.T) {
	cfg := config.LatentConfig{
		Command:        "/bin/sh",
		Args:           []string{"-c", "sleep 5"},
		RequestTimeout: 50 * time.Millisecond,
		BreakerWindow:  time.Minute,
	}
	c, err := New(zerolog.Nop(), cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Encode(context.Background(), map[string]float64{"tempo": 0.5})
	assert.ErrorIs(t, err, ports.ErrBackendUnavailable)
}
