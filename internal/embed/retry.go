package embed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig is the exponential-backoff-with-jitter policy spec.md §4.4
// requires for remote embed calls: attempt n sleeps
// min(base·baseⁿ, max) ± uniform(0, delay) when Jitter is true. The
// teacher's equivalent policy (internal/embed/retry.go) lacks the jitter
// term; it is added here.
type RetryConfig struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultRetryConfig mirrors the teacher's backoff shape (base 2, 1s floor,
// 16s ceiling) with jitter enabled.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        16 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// delayForAttempt computes the sleep before attempt n (0-based), per
// spec.md §4.4's formula.
func delayForAttempt(cfg RetryConfig, attempt int) time.Duration {
	raw := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt))
	delay := time.Duration(math.Min(raw, float64(cfg.MaxDelay)))
	if !cfg.Jitter {
		return delay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) + 1))
	if rand.Intn(2) == 0 {
		return delay - jitter
	}
	return delay + jitter
}

// WithRetry runs fn up to cfg.MaxAttempts times (1-based total attempts),
// sleeping between failures per delayForAttempt. A context cancellation is
// returned immediately rather than waited out.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err != nil {
			lastErr = err
			if attempt == cfg.MaxAttempts-1 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delayForAttempt(cfg, attempt)):
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("embed: failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
