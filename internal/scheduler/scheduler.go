// Package scheduler finds publications whose enrichment is missing or stale
// and queues them for background processing.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/queue"
	"github.com/lepinkainen/bibsync/internal/settings"
)

const (
	DefaultCheckInterval = time.Hour
	DefaultMaxPerCycle   = 50
)

// Publication is one library entry as seen by the staleness scan.
type Publication struct {
	ID          string
	Identifiers identifier.Map
	// LastEnrichedAt is nil when the publication was never enriched.
	LastEnrichedAt *time.Time
}

// Source enumerates the publications to consider.
type Source interface {
	StalePublications(ctx context.Context) ([]Publication, error)
}

// Enqueuer receives the publications selected by a scan.
type Enqueuer interface {
	QueueForEnrichment(publicationID string, ids identifier.Map, priority queue.Priority)
}

// queueInspector is implemented by enqueuers that can report pending items.
type queueInspector interface {
	IsQueued(publicationID string) bool
}

// Scheduler runs staleness scans on demand or on a schedule.
type Scheduler struct {
	enqueuer    Enqueuer
	source      Source
	settings    settings.Reader
	schedule    cron.Schedule
	maxPerCycle int
	now         func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCheckInterval runs the scan every d. Intervals under a second round up to one second.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.schedule = cron.Every(d)
		}
	}
}

// WithSchedule replaces the interval with a cron expression. Standard
// five-field expressions and descriptors such as "@daily" are accepted.
func WithSchedule(spec string) (Option, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return func(s *Scheduler) { s.schedule = sched }, nil
}

func WithMaxPerCycle(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxPerCycle = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler. It does nothing until Start or TriggerImmediateCheck is called.
func New(enqueuer Enqueuer, source Source, reader settings.Reader, opts ...Option) *Scheduler {
	s := &Scheduler{
		enqueuer:    enqueuer,
		source:      source,
		settings:    reader,
		schedule:    cron.Every(DefaultCheckInterval),
		maxPerCycle: DefaultMaxPerCycle,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TriggerImmediateCheck scans the source once and queues up to the per-cycle
// cap of publications that were never enriched or whose last enrichment is
// older than the refresh interval. Never-enriched publications go first,
// then the oldest. Publications already waiting in the queue are skipped
// when the enqueuer can report that. Returns the number queued.
func (s *Scheduler) TriggerImmediateCheck(ctx context.Context) (int, error) {
	pubs, err := s.source.StalePublications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list publications: %w", err)
	}

	refresh := time.Duration(s.settings.Current().RefreshIntervalDays) * 24 * time.Hour
	now := s.now()
	inspector, _ := s.enqueuer.(queueInspector)

	var due []Publication
	for _, p := range pubs {
		if p.Identifiers.IsEmpty() {
			slog.Debug("Skipping publication without identifiers", "publication", p.ID)
			continue
		}
		if p.LastEnrichedAt != nil && now.Sub(*p.LastEnrichedAt) <= refresh {
			continue
		}
		if inspector != nil && inspector.IsQueued(p.ID) {
			continue
		}
		due = append(due, p)
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].LastEnrichedAt, due[j].LastEnrichedAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if len(due) > s.maxPerCycle {
		due = due[:s.maxPerCycle]
	}

	for _, p := range due {
		s.enqueuer.QueueForEnrichment(p.ID, p.Identifiers, queue.Background)
	}
	slog.Debug("Staleness check complete", "scanned", len(pubs), "queued", len(due))
	return len(due), nil
}

// Start runs the scan on the configured schedule until Stop. Scans are
// skipped while auto-sync is disabled and never overlap.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(s.runCycle))
	c.Start()
	s.cron = c
	slog.Debug("Scheduler started")
}

// Stop halts the schedule and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	slog.Debug("Scheduler stopped")
}

// Running reports whether the schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *Scheduler) runCycle() {
	if !s.settings.Current().AutoSyncEnabled {
		slog.Debug("Auto-sync disabled, skipping staleness check")
		return
	}
	n, err := s.TriggerImmediateCheck(context.Background())
	if err != nil {
		slog.Warn("Staleness check failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Queued stale publications", "count", n)
	}
}

// cronLogger routes cron's logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
