// Package retry wraps provider calls with bounded, classified retries.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/bookforge/bookforge/internal/providers"
)

// Config controls the retry schedule. The zero value is usable; defaults
// match a conservative three-attempt exponential backoff.
type Config struct {
	MaxAttempts int           // Total attempts including the first (default 3)
	BaseDelay   time.Duration // Delay before the first retry (default 1s)
	Multiplier  float64       // Backoff factor per retry (default 2.0)
	MaxDelay    time.Duration // Upper bound on any single delay (default 30s)

	// Recoverable decides whether an error is worth retrying. Defaults to
	// the provider error taxonomy's recoverable kinds.
	Recoverable func(error) bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Recoverable == nil {
		c.Recoverable = providers.RecoverableIn(providers.DefaultRecoverableKinds)
	}
	return c
}

// Error is returned when all attempts are exhausted or a terminal error
// short-circuits the schedule. It carries the attempt count and wraps the
// last error.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, a terminal error occurs, the attempt budget
// is exhausted, or ctx is cancelled. The first retry waits BaseDelay and each
// later delay grows by Multiplier, capped at MaxDelay; a server-suggested
// Retry-After overrides the computed
// delay when present. Do is synchronous and spawns no goroutines.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	attempts := 0
	result, err := retry.DoWithData(
		func() (T, error) {
			attempts++
			return op(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(cfg.MaxAttempts)),
		retry.RetryIf(cfg.Recoverable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			if hint := providers.RetryAfterOf(err); hint > 0 {
				if hint > cfg.MaxDelay {
					return cfg.MaxDelay
				}
				return hint
			}
			// n counts prior failed attempts starting at 1, so the first
			// retry waits exactly BaseDelay.
			delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(n-1)))
			if delay > cfg.MaxDelay || delay <= 0 {
				return cfg.MaxDelay
			}
			return delay
		}),
	)
	if err != nil {
		var zero T
		return zero, &Error{Attempts: attempts, Err: err}
	}
	return result, nil
}
