package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate is "at most Requests requests per Interval". The zero value is unlimited.
type Rate struct {
	Requests int
	Interval time.Duration
}

// Unlimited disables admission control.
var Unlimited = Rate{}

// PerSecond is shorthand for n requests per second.
func PerSecond(n int) Rate {
	return Rate{Requests: n, Interval: time.Second}
}

// IsUnlimited reports whether the rate imposes no limit.
func (r Rate) IsUnlimited() bool {
	return r.Requests <= 0 || r.Interval <= 0
}

func (r Rate) String() string {
	if r.IsUnlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("%d/%s", r.Requests, r.Interval)
}

// Limiter is a sliding-window log limiter: it remembers the admission time of
// every request in the trailing window.
type Limiter struct {
	name  string
	rate  Rate
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	window []time.Time

	waitLog rate.Sometimes
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source and the sleep function, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// New creates a limiter allowing r.Requests per r.Interval.
func New(name string, r Rate, opts ...Option) *Limiter {
	l := &Limiter{
		name:    name,
		rate:    r,
		now:     time.Now,
		sleep:   sleepContext,
		waitLog: rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until one more request fits in the window, then records it.
// Returns an error if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.rate.IsUnlimited() {
		return nil
	}
	for {
		wait := l.reserve()
		if wait <= 0 {
			return nil
		}
		l.waitLog.Do(func() {
			slog.Debug("Rate limit reached, waiting", "limiter", l.name, "wait", wait)
		})
		// Another caller may claim the freed slot first, so loop and re-check.
		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
		}
	}
}

// Allow records a request and returns true if one fits in the window right now.
func (l *Limiter) Allow() bool {
	if l.rate.IsUnlimited() {
		return true
	}
	return l.reserve() <= 0
}

// reserve admits a request if there is room and returns 0, otherwise returns
// how long until the oldest request leaves the window.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)
	if len(l.window) < l.rate.Requests {
		l.window = append(l.window, now)
		return 0
	}
	wait := l.window[0].Add(l.rate.Interval).Sub(now)
	if wait <= 0 {
		// Clock granularity; the entry is on the boundary.
		wait = time.Nanosecond
	}
	return wait
}

func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.rate.Interval)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// InFlight returns how many admitted requests are still inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.window)
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

// Rate returns the configured rate.
func (l *Limiter) Rate() Rate {
	return l.rate
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
