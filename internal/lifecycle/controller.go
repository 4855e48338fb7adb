package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	unloadTimeout = 30 * time.Second
	listTimeout   = 10 * time.Second
	// Models report "loaded" before the HTTP endpoint actually serves; give
	// them a moment before the first probe.
	settleDelay = 5 * time.Second
)

// Prober confirms the serving endpoint answers a minimal completion.
// internal/infer.Client satisfies it.
type Prober interface {
	Probe(ctx context.Context) error
}

// Controller sequences one model through the serving slot. It holds no state
// beyond the current State value: the server itself is the source of truth,
// and every transition is observable through it.
type Controller struct {
	cmd           Commander
	prober        Prober
	log           zerolog.Logger
	loadTimeout   time.Duration
	verifyBackoff time.Duration

	settle time.Duration
	sleep  func(ctx context.Context, d time.Duration) error

	state State
}

// NewController wires the loader CLI and the probe endpoint together.
func NewController(cmd Commander, prober Prober, loadTimeout, verifyBackoff time.Duration, log zerolog.Logger) *Controller {
	return &Controller{
		cmd:           cmd,
		prober:        prober,
		log:           log,
		loadTimeout:   loadTimeout,
		verifyBackoff: verifyBackoff,
		settle:        settleDelay,
		sleep:         sleepCtx,
		state:         StateUnloaded,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Load asks the CLI to make modelID resident. A non-zero exit or hitting the
// hard timeout transitions to FAILED_TO_LOAD and returns a load failure; the
// caller decides whether to skip the model.
func (c *Controller) Load(ctx context.Context, modelID string) error {
	c.state = StateLoading
	c.log.Info().Str("model", modelID).Msg("loading model")

	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()
	_, stderr, err := c.cmd.Run(ctx, "load", modelID, "--yes")
	if err != nil {
		c.state = StateFailedToLoad
		reason := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("load timed out after %s", c.loadTimeout)
		} else if s := strings.TrimSpace(stderr); s != "" {
			if len(s) > 200 {
				s = s[:200]
			}
			reason = reason + ": " + s
		}
		c.log.Error().Str("model", modelID).Str("reason", reason).Msg("model load failed")
		return ErrLoadFailed(modelID, reason)
	}
	return nil
}

// Verify sends a synthetic completion to confirm the loaded model actually
// serves. One failed probe earns a single backoff-and-retry; a second
// failure transitions to FAILED_TO_LOAD, because a model that loads but
// never answers must not be treated as ready.
func (c *Controller) Verify(ctx context.Context, modelID string) error {
	c.state = StateVerifying
	if err := c.sleep(ctx, c.settle); err != nil {
		c.state = StateFailedToLoad
		return ErrLoadFailed(modelID, err.Error())
	}
	if err := c.prober.Probe(ctx); err != nil {
		c.log.Warn().Str("model", modelID).Err(err).
			Dur("backoff", c.verifyBackoff).Msg("model not responding yet, retrying once")
		if serr := c.sleep(ctx, c.verifyBackoff); serr != nil {
			c.state = StateFailedToLoad
			return ErrLoadFailed(modelID, serr.Error())
		}
		if err := c.prober.Probe(ctx); err != nil {
			c.state = StateFailedToLoad
			return ErrLoadFailed(modelID, "loaded but not serving: "+err.Error())
		}
	}
	c.state = StateReady
	c.log.Info().Str("model", modelID).Msg("model verified and ready")
	return nil
}

// BeginTesting moves READY -> TESTING. The runner calls it right before the
// first question is sent.
func (c *Controller) BeginTesting() error {
	if c.state != StateReady {
		return fmt.Errorf("cannot begin testing from state %s", c.state)
	}
	c.state = StateTesting
	return nil
}

// Unload clears the serving slot. Best effort by contract: failures are
// logged and swallowed, because a stuck unload surfaces as the next load's
// failure anyway and must not abort the batch.
func (c *Controller) Unload(ctx context.Context) {
	c.state = StateUnloading
	ctx, cancel := context.WithTimeout(ctx, unloadTimeout)
	defer cancel()
	if _, stderr, err := c.cmd.Run(ctx, "unload", "--all"); err != nil {
		c.log.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr)).
			Msg("unload failed, continuing anyway")
	}
	c.state = StateUnloaded
}

// ListModels returns the raw CLI model listing for catalog discovery.
func (c *Controller) ListModels(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	stdout, _, err := c.cmd.Run(ctx, "ls")
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	return stdout, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
