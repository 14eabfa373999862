package service

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/identifier"
	"github.com/lepinkainen/bibsync/internal/queue"
	"github.com/lepinkainen/bibsync/internal/retry"
)

// Outcome reports what happened to one queued item.
type Outcome struct {
	PublicationID string
	Priority      queue.Priority
	Result        *enrichment.Result
	Err           error
}

// Succeeded reports whether the item was enriched.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Summary counts the outcomes of a drain.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
}

// QueueForEnrichment appends a request. The same publication may be queued
// more than once; use IsQueued to avoid that.
func (s *Service) QueueForEnrichment(publicationID string, ids identifier.Map, priority queue.Priority) {
	item := s.queue.Push(publicationID, ids, priority)
	slog.Debug("Queued for enrichment", "publication", publicationID, "priority", priority, "id", item.ID)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// IsQueued reports whether publicationID is waiting in the queue.
func (s *Service) IsQueued(publicationID string) bool {
	return s.queue.Contains(publicationID)
}

// QueueLength returns the number of pending items.
func (s *Service) QueueLength() int {
	return s.queue.Len()
}

// QueueSnapshot returns the pending items in service order.
func (s *Service) QueueSnapshot() []queue.Item {
	return s.queue.Snapshot()
}

// ProcessNextQueued enriches the highest priority, oldest queued item.
// It returns false when the queue is empty. Failures are recorded in the
// tracker and reported in the outcome, never returned as errors; nothing is
// re-queued automatically.
func (s *Service) ProcessNextQueued(ctx context.Context) (Outcome, bool) {
	item, ok := s.queue.Pop()
	if !ok {
		return Outcome{}, false
	}
	out := Outcome{PublicationID: item.PublicationID, Priority: item.Priority}

	var existing *enrichment.Data
	if s.store != nil {
		data, err := s.store.Enrichment(ctx, item.PublicationID)
		if err != nil {
			slog.Warn("Failed to load existing enrichment", "publication", item.PublicationID, "error", err)
		} else {
			existing = data
		}
	}

	result, err := s.EnrichNow(ctx, item.Identifiers, existing)
	if err != nil {
		s.tracker.RecordFailure(item.PublicationID, item.Identifiers, err)
		slog.Info("Enrichment failed", "publication", item.PublicationID, "error", err)
		out.Err = err
		return out, true
	}

	s.tracker.ClearFailure(item.PublicationID)
	if s.store != nil {
		if err := s.store.SaveEnrichment(ctx, item.PublicationID, result); err != nil {
			slog.Warn("Failed to save enrichment", "publication", item.PublicationID, "error", err)
		}
	}
	slog.Info("Enriched publication", "publication", item.PublicationID, "source", result.Data.Source)
	out.Result = result
	return out, true
}

// DrainQueue processes items until the queue is empty or ctx is done.
func (s *Service) DrainQueue(ctx context.Context) Summary {
	var sum Summary
	for ctx.Err() == nil {
		out, ok := s.ProcessNextQueued(ctx)
		if !ok {
			break
		}
		sum.Processed++
		if out.Succeeded() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum
}

// RequeueFailed queues tracked failures that policy still allows to retry,
// skipping publications already in the queue. Returns the number queued.
func (s *Service) RequeueFailed(policy retry.Policy) int {
	n := 0
	for _, r := range s.tracker.RequestsForRetry() {
		// RetryCount 0 means one failed attempt so far.
		if policy.Exhausted(r.RetryCount+1) || s.queue.Contains(r.PublicationID) {
			continue
		}
		s.QueueForEnrichment(r.PublicationID, r.Identifiers, queue.LibraryPaper)
		n++
	}
	return n
}
