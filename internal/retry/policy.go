// Package retry computes backoff delays and attempt ceilings for retried
// enrichment requests.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
)

// Policy describes exponential backoff with optional jitter.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	BaseDelay   time.Duration
	// JitterFactor perturbs each delay by up to ±JitterFactor of its value. 0 disables jitter.
	JitterFactor float64
	// MaxDelay caps the computed delay before jitter. 0 means no cap.
	MaxDelay time.Duration
	// Retryable decides whether an error is worth another attempt. nil retries everything.
	Retryable func(error) bool
}

// Default returns 3 attempts with a 2s base delay and 10% jitter.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		BaseDelay:    2 * time.Second,
		JitterFactor: 0.1,
	}
}

// Delay returns the wait before retrying after the failed attempt k (0-based):
// BaseDelay * 2^k, capped by MaxDelay, then jittered.
func (p Policy) Delay(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(k))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d > math.MaxInt64 {
		d = math.MaxInt64
	}
	if p.JitterFactor > 0 {
		// uniform in [-JitterFactor, +JitterFactor]
		d += d * p.JitterFactor * (2*rand.Float64() - 1)
		if d < 0 {
			d = 0
		}
	}
	return time.Duration(d)
}

// Exhausted reports whether no further attempt is allowed after failedAttempts failures.
func (p Policy) Exhausted(failedAttempts int) bool {
	return failedAttempts >= max(p.MaxAttempts, 1)
}

func (p Policy) retryable(err error) bool {
	return p.Retryable == nil || p.Retryable(err)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, the policy is exhausted, the error is not
// retryable or ctx is done. When attempts run out the error of the final
// attempt is returned as is. A provider-reported RetryAfter longer than the
// computed delay is honoured.
func Do[T any](ctx context.Context, p Policy, sleep SleepFunc, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if sleep == nil {
		sleep = Sleep
	}
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if p.Exhausted(attempt+1) || !p.retryable(err) {
			return result, err
		}

		delay := p.Delay(attempt)
		if ra := bibsyncerrors.RetryAfter(err); ra > delay {
			delay = ra
		}
		slog.Debug("Retrying after failure", "attempt", attempt+1, "max_attempts", p.MaxAttempts, "delay", delay, "error", err)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
	}
}
