package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	onWait func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.slept = append(c.slept, d)
	hook := c.onWait
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	c.Advance(d)
	return nil
}

func (c *fakeClock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.slept {
		total += d
	}
	return total
}

func newTestLimiter(r Rate) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	return New("test", r, WithClock(clock.Now, clock.Sleep)), clock
}

func TestWaitAllowsBurstUpToLimit(t *testing.T) {
	l, clock := newTestLimiter(Rate{Requests: 3, Interval: time.Second})

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}

	assert.Zero(t, clock.TotalSlept(), "exactly the limit must not be delayed")
	assert.Equal(t, 3, l.InFlight())
}

func TestWaitDelaysRequestOverLimit(t *testing.T) {
	l, clock := newTestLimiter(Rate{Requests: 3, Interval: time.Second})

	require.NoError(t, l.Wait(context.Background()))
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))

	require.NoError(t, l.Wait(context.Background()))

	// The oldest request was at t=0, so the fourth may start at t=1s.
	assert.Equal(t, 800*time.Millisecond, clock.TotalSlept())
	assert.Equal(t, 3, l.InFlight())
}

func TestWaitEvictsOldTimestamps(t *testing.T) {
	l, clock := newTestLimiter(Rate{Requests: 2, Interval: time.Second})

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	clock.Advance(time.Second)

	require.NoError(t, l.Wait(context.Background()))
	assert.Zero(t, clock.TotalSlept())
	assert.Equal(t, 1, l.InFlight())
}

func TestWaitRechecksWhenSlotIsTaken(t *testing.T) {
	l, clock := newTestLimiter(Rate{Requests: 1, Interval: time.Second})
	require.NoError(t, l.Wait(context.Background()))

	// While the caller sleeps, a competing caller grabs the slot that frees up.
	stolen := false
	clock.onWait = func() {
		if stolen {
			return
		}
		stolen = true
		clock.Advance(time.Second)
		require.True(t, l.Allow())
		clock.Advance(-time.Second)
	}

	require.NoError(t, l.Wait(context.Background()))

	assert.Len(t, clock.slept, 2, "caller must loop after losing the race")
}

func TestWaitUnlimited(t *testing.T) {
	l, clock := newTestLimiter(Unlimited)
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Zero(t, clock.TotalSlept())
	assert.Equal(t, 0, l.InFlight())
	assert.Equal(t, "unlimited", l.Rate().String())
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	l := New("cancel", Rate{Requests: 1, Interval: time.Hour})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "rate limit wait for cancel")
}

func TestAllow(t *testing.T) {
	l, clock := newTestLimiter(Rate{Requests: 2, Interval: time.Second})

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	clock.Advance(time.Second)
	assert.True(t, l.Allow())
}

func TestWaitRealClock(t *testing.T) {
	l := New("real", Rate{Requests: 2, Interval: 100 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestWaitConcurrentCallersNeverExceedLimit(t *testing.T) {
	l := New("concurrent", Rate{Requests: 5, Interval: time.Hour})

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 20)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Wait(ctx) == nil {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	assert.Len(t, admitted, 5)
}

func TestName(t *testing.T) {
	l := New("semanticscholar", PerSecond(1))
	assert.Equal(t, "semanticscholar", l.Name())
	assert.Equal(t, "1/1s", l.Rate().String())
}
