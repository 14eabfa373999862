// Package service orchestrates enrichment: provider fallback, the deferred
// work queue and the background sync loop.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	bibsyncerrors "github.com/lepinkainen/bibsync/internal/errors"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/queue"
	"github.com/lepinkainen/bibsync/internal/retry"
	"github.com/lepinkainen/bibsync/internal/settings"
	"github.com/lepinkainen/bibsync/internal/tracker"
)

// DefaultIdleInterval is how long the background loop sleeps once the queue is drained.
const DefaultIdleInterval = 30 * time.Second

// Store loads and saves the enrichment state of library publications.
type Store interface {
	Enrichment(ctx context.Context, publicationID string) (*enrichment.Data, error)
	SaveEnrichment(ctx context.Context, publicationID string, result *enrichment.Result) error
}

// Lifecycle is a component started and stopped together with background sync.
type Lifecycle interface {
	Start()
	Stop()
}

// Service is safe for concurrent use.
type Service struct {
	providers []enrichment.Provider
	byID      map[string]enrichment.Provider
	settings  settings.Reader
	queue     *queue.Queue
	tracker   *tracker.Tracker
	store     Store
	idle      time.Duration
	sleep     retry.SleepFunc

	// lifecycleMu serialises Attach, StartBackgroundSync and
	// StopBackgroundSync; mu guards the fields below it.
	lifecycleMu sync.Mutex

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	done       chan struct{}
	wake       chan struct{}
	lifecycles []Lifecycle
}

// Option configures a Service.
type Option func(*Service)

func WithTracker(t *tracker.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithQueue(q *queue.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithStore makes queued processing load existing data and persist results.
func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

func WithIdleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idle = d
		}
	}
}

// WithSleeper replaces the sleep used between retries.
func WithSleeper(sleep retry.SleepFunc) Option {
	return func(s *Service) { s.sleep = sleep }
}

// New creates a service over the given providers. The provider list is used
// as is; the order they are tried in comes from settings.
func New(providers []enrichment.Provider, reader settings.Reader, opts ...Option) *Service {
	s := &Service{
		providers: append([]enrichment.Provider(nil), providers...),
		byID:      make(map[string]enrichment.Provider, len(providers)),
		settings:  reader,
		idle:      DefaultIdleInterval,
		sleep:     retry.Sleep,
		wake:      make(chan struct{}, 1),
	}
	for _, p := range s.providers {
		s.byID[p.ID()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = queue.New()
	}
	if s.tracker == nil {
		s.tracker = tracker.New()
	}
	return s
}

// EnrichNow asks providers in priority order until one succeeds.
//
// Providers missing from the settings order, or unable to use any of the
// identifiers, are skipped. A rate limited error stops the chain at once.
// Other errors move on to the next provider. When every candidate fails the
// error of the last one tried is returned.
func (s *Service) EnrichNow(ctx context.Context, ids identifier.Map, existing *enrichment.Data) (*enrichment.Result, error) {
	if ids.IsEmpty() {
		return nil, bibsyncerrors.ErrNoIdentifier
	}

	var lastErr error
	for _, p := range s.orderedProviders() {
		if !enrichment.CanEnrich(p, ids) {
			slog.Debug("Skipping provider without usable identifier", "provider", p.ID(), "identifiers", ids.String())
			continue
		}

		result, err := p.Enrich(ctx, ids, existing)
		if err == nil && (result == nil || result.Data == nil) {
			err = bibsyncerrors.NewParseError(p.ID(), "provider returned no data", nil)
		}
		if err == nil {
			result.Identifiers = ids.Merge(result.Identifiers)
			slog.Debug("Enrichment succeeded", "provider", p.ID(), "identifiers", result.Identifiers.String())
			return result, nil
		}

		if bibsyncerrors.IsRateLimitError(err) {
			slog.Warn("Provider rate limited, stopping fallback", "provider", p.ID(), "error", err)
			return nil, err
		}
		slog.Warn("Provider failed, trying next", "provider", p.ID(), "error", err)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		return nil, bibsyncerrors.ErrNoSourceAvailable
	}
	return nil, lastErr
}

// EnrichSearchResult enriches a search hit using the identifiers it carries.
func (s *Service) EnrichSearchResult(ctx context.Context, r enrichment.SearchResult) (*enrichment.Result, error) {
	return s.EnrichNow(ctx, r.Identifiers(), nil)
}

// EnrichWithRetry calls EnrichNow until it succeeds or policy is exhausted.
// The error of the final attempt is returned unchanged.
func (s *Service) EnrichWithRetry(ctx context.Context, ids identifier.Map, existing *enrichment.Data, policy retry.Policy) (*enrichment.Result, error) {
	return retry.Do(ctx, policy, s.sleep, func(ctx context.Context, attempt int) (*enrichment.Result, error) {
		if attempt > 0 {
			slog.Info("Retrying enrichment", "attempt", attempt+1, "identifiers", ids.String())
		}
		return s.EnrichNow(ctx, ids, existing)
	})
}

// Transient reports whether err may go away on a later attempt.
func Transient(err error) bool {
	switch bibsyncerrors.KindOf(err) {
	case bibsyncerrors.KindNoIdentifier, bibsyncerrors.KindNoSourceAvailable, bibsyncerrors.KindAuthenticationRequired, bibsyncerrors.KindNotFound:
		return false
	}
	return true
}

func (s *Service) orderedProviders() []enrichment.Provider {
	order := s.settings.Current().EffectiveOrder()
	out := make([]enrichment.Provider, 0, len(order))
	for _, id := range order {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Provider returns the registered provider with the given ID.
func (s *Service) Provider(id string) (enrichment.Provider, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Providers returns the registered providers in registration order.
func (s *Service) Providers() []enrichment.Provider {
	return append([]enrichment.Provider(nil), s.providers...)
}

// ProvidersSupporting returns the providers advertising capability c.
func (s *Service) ProvidersSupporting(c enrichment.Capability) []enrichment.Provider {
	var out []enrichment.Provider
	for _, p := range s.providers {
		if enrichment.Supports(p, c) {
			out = append(out, p)
		}
	}
	return out
}

// Tracker returns the failed request tracker.
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}
