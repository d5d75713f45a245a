// Package latent wraps the external latent-space encoder/decoder as a
// long-lived subprocess speaking newline-delimited JSON on stdin/stdout.
// Every call is guarded by a circuit breaker so a stalled or crashed
// subprocess degrades callers to ErrBackendUnavailable instead of
// blocking them.
package latent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/driftcast/driftcast/internal/config"
	"github.com/driftcast/driftcast/internal/domain/session/ports"
	"github.com/driftcast/driftcast/internal/metrics"
	"github.com/driftcast/driftcast/internal/procgroup"
	"github.com/driftcast/driftcast/internal/resilience"
	"github.com/driftcast/driftcast/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Client manages the latent-space subprocess and implements ports.LatentClient.
type Client struct {
	logger  zerolog.Logger
	cfg     config.LatentConfig
	breaker *resilience.CircuitBreaker

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	nextID  uint64
	pending map[uint64]chan response
	closed  bool
}

// New starts the subprocess named by cfg.Command (if set). A Client with
// no configured command is valid but every call returns
// ports.ErrBackendUnavailable immediately.
func New(logger zerolog.Logger, cfg config.LatentConfig) (*Client, error) {
	c := &Client{
		logger:  logger.With().Str("component", "latent-client").Logger(),
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("latent-service", 3, 5, cfg.BreakerWindow, 30*time.Second),
		pending: make(map[uint64]chan response),
	}
	if cfg.Command == "" {
		c.logger.Warn().Msg("no latent service command configured, operating in fallback-only mode")
		return c, nil
	}
	if err := c.spawn(); err != nil {
		return nil, fmt.Errorf("spawning latent service: %w", err)
	}
	return c, nil
}

func (c *Client) spawn() error {
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...) // #nosec G204 -- operator-configured binary
	procgroup.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	c.mu.Lock()
	c.cmd = cmd
	c.stdin = stdin
	c.mu.Unlock()

	go c.readLoop(stdout)
	go c.waitLoop()
	return nil
}

func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var resp response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			c.logger.Warn().Err(err).Msg("malformed latent service response, dropping")
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *Client) waitLoop() {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd == nil {
		return
	}
	err := cmd.Wait()
	outcome := "exited"
	if err != nil {
		outcome = "exited-error"
	}
	metrics.IncProcWait(outcome)

	c.mu.Lock()
	c.cmd = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.breaker.RecordTechnicalFailure()
}

// call sends a request and waits for the matching response, the request
// timeout, or process exit, whichever comes first.
func (c *Client) call(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	trace.SpanFromContext(ctx).SetAttributes(telemetry.LatentRequestAttributes(op)...)

	c.mu.Lock()
	if c.closed || c.cmd == nil {
		c.mu.Unlock()
		return nil, ports.ErrBackendUnavailable
	}
	c.nextID++
	id := c.nextID
	ch := make(chan response, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	c.breaker.RecordAttempt()

	var outcome string
	err := c.breaker.Execute(func() error {
		req := request{ID: id, Op: op, Params: params}
		line, marshalErr := json.Marshal(req)
		if marshalErr != nil {
			return marshalErr
		}
		line = append(line, '\n')
		if _, writeErr := stdin.Write(line); writeErr != nil {
			return writeErr
		}

		timeout := c.cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case resp, ok := <-ch:
			if !ok {
				outcome = "process-exited"
				return fmt.Errorf("latent service process exited")
			}
			if resp.Error != "" {
				outcome = "service-error"
				return fmt.Errorf("latent service error: %s", resp.Error)
			}
			outcome = "ok"
			params = resp.Result
			return nil
		case <-timer.C:
			c.mu.Lock()
			delete(c.pending, id)
			c.mu.Unlock()
			outcome = "timeout"
			return ports.ErrTimedOut
		case <-ctx.Done():
			c.mu.Lock()
			delete(c.pending, id)
			c.mu.Unlock()
			outcome = "canceled"
			return ctx.Err()
		}
	})

	if outcome == "" {
		outcome = "circuit-open"
	}
	metrics.RecordLatentRequest(outcome)

	if err != nil {
		if err == resilience.ErrCircuitOpen {
			return nil, ports.ErrBackendUnavailable
		}
		return nil, ports.ErrBackendUnavailable
	}
	return params, nil
}

// Encode implements ports.LatentClient.
func (c *Client) Encode(ctx context.Context, features map[string]float64) ([]float64, error) {
	result, err := c.call(ctx, opEncode, map[string]any{"features": features})
	if err != nil {
		return nil, err
	}
	return toFloatSlice(result["latent"])
}

// Decode implements ports.LatentClient.
func (c *Client) Decode(ctx context.Context, latent []float64) (map[string]float64, error) {
	result, err := c.call(ctx, opDecode, map[string]any{"latent": latent})
	if err != nil {
		return nil, err
	}
	return toFloatMap(result["features"])
}

// Interpolate implements ports.LatentClient.
func (c *Client) Interpolate(ctx context.Context, a, b []float64, steps int) ([][]float64, error) {
	result, err := c.call(ctx, opInterpolate, map[string]any{"a": a, "b": b, "steps": steps})
	if err != nil {
		return nil, err
	}
	raw, ok := result["points"].([]any)
	if !ok {
		return nil, fmt.Errorf("invalid-argument: malformed interpolate response")
	}
	points := make([][]float64, 0, len(raw))
	for _, p := range raw {
		fp, err := toFloatSlice(p)
		if err != nil {
			return nil, err
		}
		points = append(points, fp)
	}
	return points, nil
}

// Flow implements ports.LatentClient.
func (c *Client) Flow(ctx context.Context, base []float64, direction string, amount float64) (map[string]float64, error) {
	result, err := c.call(ctx, opFlow, map[string]any{"base": base, "direction": direction, "amount": amount})
	if err != nil {
		return nil, err
	}
	return toFloatMap(result["features"])
}

// Close terminates the subprocess, giving it a grace period to exit
// cleanly before killing its process group.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cmd := c.cmd
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := procgroup.KillGroup(cmd.Process.Pid, 2*time.Second, 5*time.Second)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.IncProcTerminate("term-then-kill", outcome)
	return err
}

var _ ports.LatentClient = (*Client)(nil)

func toFloatSlice(v any) ([]float64, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid-argument: expected numeric array")
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("invalid-argument: non-numeric array element")
		}
		out = append(out, f)
	}
	return out, nil
}

func toFloatMap(v any) (map[string]float64, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid-argument: expected object of numeric features")
	}
	out := make(map[string]float64, len(raw))
	for k, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("invalid-argument: non-numeric feature %q", k)
		}
		out[k] = f
	}
	return out, nil
}
