// Package completion wraps a text generator with bounded retries,
// exponential backoff and ordered model-tier fallback.
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/voice-agent-core/server/internal/agent/model"
	errx "github.com/voice-agent-core/server/internal/core/error"
	logx "github.com/voice-agent-core/server/pkg/logger"
)

// Generator produces one completion from one model. Implementations return
// an *errx.ProviderError when they can tell transient failures from terminal ones.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string) (*model.Completion, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Config struct {
	// Tiers are model ids tried in order.
	Tiers []string
	// MaxRetries is the number of attempts per tier.
	MaxRetries int
	// BackoffBase is the first delay; each further retry doubles it.
	BackoffBase time.Duration
	// Sleep defaults to SleepContext.
	Sleep Sleeper
}

type Client struct {
	gen        Generator
	tiers      []string
	maxRetries int
	base       time.Duration
	sleep      Sleeper
}

func New(gen Generator, cfg Config) (*Client, error) {
	if gen == nil {
		return nil, errors.New("completion: generator is nil")
	}
	if len(cfg.Tiers) == 0 {
		return nil, errors.New("completion: at least one model tier is required")
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("completion: max retries must be >= 1, got %d", cfg.MaxRetries)
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	return &Client{
		gen:        gen,
		tiers:      append([]string(nil), cfg.Tiers...),
		maxRetries: cfg.MaxRetries,
		base:       cfg.BackoffBase,
		sleep:      cfg.Sleep,
	}, nil
}

// Tiers returns the model ids in try order.
func (c *Client) Tiers() []string {
	return append([]string(nil), c.tiers...)
}

// schedule yields base, 2*base, 4*base ... and stops once a tier has no
// attempts left to wait for.
func (c *Client) schedule() retry.Backoff {
	return retry.WithMaxRetries(uint64(c.maxRetries-1), retry.NewExponential(c.base))
}

// Complete returns the first successful completion. Transient failures are
// retried on the same tier after a backoff; terminal failures and exhausted
// tiers move on to the next tier. When every tier is spent the returned error
// is an *errx.ExhaustedError wrapping the last failure.
func (c *Client) Complete(ctx context.Context, prompt string) (*model.Completion, error) {
	var last error
	attempts := 0

	for tier, modelID := range c.tiers {
		backoff := c.schedule()

		for attempt := 1; attempt <= c.maxRetries; attempt++ {
			attempts++
			logx.Debug().Str("model", modelID).Int("tier", tier).Int("attempt", attempt).
				Int("max_attempts", c.maxRetries).Msg("completion attempt")

			out, err := c.gen.Generate(ctx, prompt, modelID)
			if err == nil {
				if out == nil {
					out = &model.Completion{}
				}
				if out.Model == "" {
					out.Model = modelID
				}
				out.Tier = tier
				out.Attempts = attempts
				logx.Info().Str("model", modelID).Int("tier", tier).Int("attempts", attempts).Msg("completion received")
				return out, nil
			}
			last = err

			if ctx.Err() != nil {
				return nil, fmt.Errorf("completion aborted on %s: %w", modelID, ctx.Err())
			}

			if !errx.IsTransient(err) {
				logx.Error().Str("model", modelID).Int("tier", tier).Int("attempt", attempt).
					Str("error", logx.Truncate(err.Error())).Msg("terminal completion failure, moving to next tier")
				break
			}
			if attempt == c.maxRetries {
				logx.Error().Str("model", modelID).Int("tier", tier).Int("attempt", attempt).
					Str("error", logx.Truncate(err.Error())).Msg("model tier exhausted")
				break
			}
			delay, stop := backoff.Next()
			if stop {
				break
			}
			logx.Warn().Str("model", modelID).Int("tier", tier).Int("attempt", attempt).
				Dur("retry_in", delay).Str("error", logx.Truncate(err.Error())).Msg("transient completion failure")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("completion aborted during backoff: %w", err)
			}
		}
	}

	exhausted := &errx.ExhaustedError{Attempts: attempts, Tiers: len(c.tiers), Last: last}
	logx.Error().Int("attempts", attempts).Int("tiers", len(c.tiers)).
		Str("error", logx.Truncate(fmt.Sprint(last))).Msg("all model tiers failed")
	return nil, exhausted
}
