package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/queue"
	"github.com/lepinkainen/bibsync/internal/settings"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type queued struct {
	id       string
	priority queue.Priority
}

type recordingEnqueuer struct {
	mu      sync.Mutex
	items   []queued
	pending map[string]bool
}

func (r *recordingEnqueuer) QueueForEnrichment(id string, _ identifier.Map, p queue.Priority) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, queued{id: id, priority: p})
}

func (r *recordingEnqueuer) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.id)
	}
	return out
}

// inspectingEnqueuer also reports pending publications.
type inspectingEnqueuer struct {
	recordingEnqueuer
}

func (r *inspectingEnqueuer) IsQueued(id string) bool {
	return r.pending[id]
}

type staticSource struct {
	pubs []Publication
	err  error
}

func (s staticSource) StalePublications(context.Context) ([]Publication, error) {
	return s.pubs, s.err
}

func pub(id string, enrichedAgo *time.Duration) Publication {
	p := Publication{ID: id, Identifiers: identifier.Map{identifier.DOI: "10.1000/" + id}}
	if enrichedAgo != nil {
		at := now.Add(-*enrichedAgo)
		p.LastEnrichedAt = &at
	}
	return p
}

func days(n int) *time.Duration {
	d := time.Duration(n) * 24 * time.Hour
	return &d
}

func refresh(daysN int) settings.Static {
	return settings.Static{RefreshIntervalDays: daysN, AutoSyncEnabled: true}
}

func TestTriggerImmediateCheckQueuesStaleAndNeverEnriched(t *testing.T) {
	enq := &recordingEnqueuer{}
	src := staticSource{pubs: []Publication{
		pub("never", nil),
		pub("old", days(10)),
		pub("fresh", days(1)),
	}}
	s := New(enq, src, refresh(7), WithClock(func() time.Time { return now }))

	n, err := s.TriggerImmediateCheck(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"never", "old"}, enq.ids())
	for _, it := range enq.items {
		assert.Equal(t, queue.Background, it.priority)
	}
}

func TestTriggerImmediateCheckBoundaryIsStrict(t *testing.T) {
	enq := &recordingEnqueuer{}
	src := staticSource{pubs: []Publication{pub("exact", days(7))}}
	s := New(enq, src, refresh(7), WithClock(func() time.Time { return now }))

	n, err := s.TriggerImmediateCheck(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTriggerImmediateCheckOrdersOldestFirstAndCaps(t *testing.T) {
	enq := &recordingEnqueuer{}
	src := staticSource{pubs: []Publication{
		pub("d10", days(10)),
		pub("d30", days(30)),
		pub("never", nil),
		pub("d20", days(20)),
	}}
	s := New(enq, src, refresh(7),
		WithClock(func() time.Time { return now }),
		WithMaxPerCycle(3),
	)

	n, err := s.TriggerImmediateCheck(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"never", "d30", "d20"}, enq.ids())
}

func TestTriggerImmediateCheckSkipsUnidentifiedAndQueued(t *testing.T) {
	enq := &inspectingEnqueuer{}
	enq.pending = map[string]bool{"pending": true}
	src := staticSource{pubs: []Publication{
		{ID: "bare"},
		pub("pending", nil),
		pub("todo", nil),
	}}
	s := New(enq, src, refresh(7), WithClock(func() time.Time { return now }))

	n, err := s.TriggerImmediateCheck(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"todo"}, enq.ids())
}

func TestTriggerImmediateCheckSourceError(t *testing.T) {
	s := New(&recordingEnqueuer{}, staticSource{err: errors.New("db locked")}, refresh(7))

	_, err := s.TriggerImmediateCheck(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestWithSchedule(t *testing.T) {
	opt, err := WithSchedule("@daily")
	require.NoError(t, err)
	s := New(&recordingEnqueuer{}, staticSource{}, refresh(7), opt)
	next := s.schedule.Next(now)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), next)

	_, err = WithSchedule("every tuesday")
	require.Error(t, err)
}

func TestRunCycleRespectsAutoSync(t *testing.T) {
	enq := &recordingEnqueuer{}
	src := staticSource{pubs: []Publication{pub("never", nil)}}

	disabled := settings.Static{RefreshIntervalDays: 7}
	New(enq, src, disabled).runCycle()
	assert.Empty(t, enq.ids())

	New(enq, src, refresh(7)).runCycle()
	assert.Equal(t, []string{"never"}, enq.ids())
}

func TestStartStopIdempotent(t *testing.T) {
	s := New(&recordingEnqueuer{}, staticSource{}, refresh(7))

	s.Stop()
	s.Start()
	s.Start()
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestStartRunsPeriodically(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the one second schedule")
	}
	enq := &recordingEnqueuer{}
	var pubs []Publication
	for i := 0; i < 3; i++ {
		pubs = append(pubs, pub(fmt.Sprintf("p%d", i), nil))
	}
	s := New(enq, staticSource{pubs: pubs}, refresh(7), WithCheckInterval(time.Second))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return len(enq.ids()) >= 3 }, 3*time.Second, 50*time.Millisecond)
}
