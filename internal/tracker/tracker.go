// Package tracker records enrichment failures per publication so they can be
// inspected and retried later.
package tracker

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lepinkainen/bibsync/internal/identifier"
)

// FailedRequest is the failure history of one publication.
type FailedRequest struct {
	PublicationID string         `json:"publicationId" yaml:"publicationId"`
	Identifiers   identifier.Map `json:"identifiers" yaml:"identifiers"`
	LastError     string         `json:"lastError" yaml:"lastError"`
	// RetryCount is 0 after the first failure and grows by one per repeat.
	RetryCount int       `json:"retryCount" yaml:"retryCount"`
	FirstSeen  time.Time `json:"firstSeen" yaml:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen" yaml:"lastSeen"`
}

// RetryRequest is the subset of a FailedRequest needed to retry it.
type RetryRequest struct {
	PublicationID string
	Identifiers   identifier.Map
	RetryCount    int
}

// Store persists tracker entries across runs.
type Store interface {
	SaveFailure(FailedRequest) error
	DeleteFailure(publicationID string) error
	DeleteAllFailures() error
	LoadFailures() ([]FailedRequest, error)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*FailedRequest
	store   Store
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore writes every change through to s. Store errors are logged and
// never change the in-memory result.
func WithStore(s Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		entries: make(map[string]*FailedRequest),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load replaces the in-memory entries with the contents of the store.
func (t *Tracker) Load() error {
	if t.store == nil {
		return nil
	}
	loaded, err := t.store.LoadFailures()
	if err != nil {
		return fmt.Errorf("failed to load failed requests: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*FailedRequest, len(loaded))
	for i := range loaded {
		fr := loaded[i]
		t.entries[fr.PublicationID] = &fr
	}
	slog.Debug("Loaded failed requests", "count", len(loaded))
	return nil
}

// RecordFailure creates an entry with RetryCount 0, or increments the count
// of an existing entry and refreshes its identifiers and error.
func (t *Tracker) RecordFailure(publicationID string, ids identifier.Map, cause error) FailedRequest {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := t.now()

	// Writes to the store happen under mu so they land in the same order as
	// the in-memory changes.
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[publicationID]
	if !ok {
		entry = &FailedRequest{
			PublicationID: publicationID,
			FirstSeen:     now,
		}
		t.entries[publicationID] = entry
	} else {
		entry.RetryCount++
	}
	entry.Identifiers = ids.Clone()
	entry.LastError = msg
	entry.LastSeen = now
	snapshot := *entry

	slog.Debug("Recorded enrichment failure", "publication", publicationID, "retry_count", snapshot.RetryCount, "error", msg)
	if t.store != nil {
		if err := t.store.SaveFailure(snapshot); err != nil {
			slog.Warn("Failed to persist failed request", "publication", publicationID, "error", err)
		}
	}
	return snapshot
}

// ClearFailure removes the entry for publicationID and reports whether one existed.
func (t *Tracker) ClearFailure(publicationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[publicationID]
	delete(t.entries, publicationID)

	if ok && t.store != nil {
		if err := t.store.DeleteFailure(publicationID); err != nil {
			slog.Warn("Failed to delete persisted failed request", "publication", publicationID, "error", err)
		}
	}
	return ok
}

// ClearAll removes every entry.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*FailedRequest)

	if t.store != nil {
		if err := t.store.DeleteAllFailures(); err != nil {
			slog.Warn("Failed to delete persisted failed requests", "error", err)
		}
	}
}

// RequestsForRetry returns every tracked entry, sorted by publication ID.
// Callers decide which to retry.
func (t *Tracker) RequestsForRetry() []RetryRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RetryRequest, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, RetryRequest{
			PublicationID: e.PublicationID,
			Identifiers:   e.Identifiers.Clone(),
			RetryCount:    e.RetryCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublicationID < out[j].PublicationID })
	return out
}

// FailureCount returns the number of tracked publications.
func (t *Tracker) FailureCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns a copy of the entry for publicationID.
func (t *Tracker) Get(publicationID string) (FailedRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[publicationID]
	if !ok {
		return FailedRequest{}, false
	}
	out := *e
	out.Identifiers = e.Identifiers.Clone()
	return out, true
}

// All returns copies of every entry, most recently failed first.
func (t *Tracker) All() []FailedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FailedRequest, 0, len(t.entries))
	for _, e := range t.entries {
		c := *e
		c.Identifiers = e.Identifiers.Clone()
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].PublicationID < out[j].PublicationID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}
