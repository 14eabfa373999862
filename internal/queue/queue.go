// Package queue implements the in-memory priority queue of deferred
// enrichment requests.
package queue

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lepinkainen/bibsync/internal/identifier"
)

// Priority orders queue tiers. Higher values are served first.
type Priority int

const (
	Background Priority = iota
	LibraryPaper
	UserTriggered
)

// tiers in service order
var tiers = []Priority{UserTriggered, LibraryPaper, Background}

func (p Priority) String() string {
	switch p {
	case UserTriggered:
		return "userTriggered"
	case LibraryPaper:
		return "libraryPaper"
	case Background:
		return "background"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority maps a name (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	for _, p := range tiers {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Item is one pending enrichment request.
type Item struct {
	ID            uuid.UUID
	PublicationID string
	Identifiers   identifier.Map
	Priority      Priority
	EnqueuedAt    time.Time
}

// Queue is a FIFO per priority tier. Safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	tiers map[Priority][]Item
	now   func() time.Time
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tiers: make(map[Priority][]Item, len(tiers)),
		now:   time.Now,
	}
}

// Push appends a request. Repeated pushes of the same publication are kept.
// Priorities outside the known tiers are queued as Background.
func (q *Queue) Push(publicationID string, ids identifier.Map, priority Priority) Item {
	if priority < Background || priority > UserTriggered {
		priority = Background
	}
	item := Item{
		ID:            uuid.New(),
		PublicationID: publicationID,
		Identifiers:   ids.Clone(),
		Priority:      priority,
		EnqueuedAt:    q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.tiers[priority] = append(q.tiers[priority], item)
	return item
}

// Pop removes and returns the oldest item of the highest non-empty tier.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range tiers {
		items := q.tiers[p]
		if len(items) == 0 {
			continue
		}
		item := items[0]
		items[0] = Item{}
		q.tiers[p] = items[1:]
		return item, true
	}
	return Item{}, false
}

// Len returns the total number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, items := range q.tiers {
		n += len(items)
	}
	return n
}

// LenByPriority returns the number of pending items per tier.
func (q *Queue) LenByPriority() map[Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[Priority]int, len(q.tiers))
	for p, items := range q.tiers {
		if len(items) > 0 {
			out[p] = len(items)
		}
	}
	return out
}

// Contains reports whether publicationID has at least one pending item.
func (q *Queue) Contains(publicationID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, items := range q.tiers {
		for _, item := range items {
			if item.PublicationID == publicationID {
				return true
			}
		}
	}
	return false
}

// Snapshot returns the pending items in service order without removing them.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Item
	for _, p := range tiers {
		out = append(out, q.tiers[p]...)
	}
	return out
}
