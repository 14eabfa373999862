package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bibsync/internal/identifier"
)

func ids(doi string) identifier.Map {
	return identifier.Map{identifier.DOI: doi}
}

func TestPopEmpty(t *testing.T) {
	q := New()
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestPopHigherTierFirst(t *testing.T) {
	q := New()
	q.Push("bg", ids("10.1000/bg"), Background)
	q.Push("lib", ids("10.1000/lib"), LibraryPaper)
	q.Push("user", ids("10.1000/user"), UserTriggered)

	var order []string
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, item.PublicationID)
	}

	assert.Equal(t, []string{"user", "lib", "bg"}, order)
}

func TestPopFIFOWithinTier(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		q.Push(fmt.Sprintf("p%d", i), ids("10.1000/x"), LibraryPaper)
	}

	for i := 0; i < 5; i++ {
		item, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("p%d", i), item.PublicationID)
	}
}

func TestPushKeepsDuplicates(t *testing.T) {
	q := New()
	a := q.Push("p1", ids("10.1000/x"), Background)
	b := q.Push("p1", ids("10.1000/x"), Background)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.Contains("p1"))
	assert.False(t, q.Contains("p2"))
}

func TestPushCopiesIdentifiers(t *testing.T) {
	q := New()
	m := ids("10.1000/x")
	q.Push("p1", m, Background)
	m[identifier.DOI] = "changed"

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "10.1000/x", item.Identifiers.Get(identifier.DOI))
	assert.False(t, item.EnqueuedAt.IsZero())
}

func TestPushUnknownPriorityIsBackground(t *testing.T) {
	q := New()
	item := q.Push("p1", ids("10.1000/x"), Priority(42))
	assert.Equal(t, Background, item.Priority)
	assert.Equal(t, map[Priority]int{Background: 1}, q.LenByPriority())
}

func TestSnapshotServiceOrder(t *testing.T) {
	q := New()
	q.Push("bg", ids("10.1000/bg"), Background)
	q.Push("user", ids("10.1000/user"), UserTriggered)

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "user", snap[0].PublicationID)
	assert.Equal(t, 2, q.Len(), "snapshot must not consume items")
}

func TestConcurrentPopNeverDuplicates(t *testing.T) {
	q := New()
	const n = 200
	for i := 0; i < n; i++ {
		q.Push(fmt.Sprintf("p%d", i), ids("10.1000/x"), Priority(i%3))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[item.PublicationID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "item %s popped more than once", id)
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("UserTriggered")
	require.NoError(t, err)
	assert.Equal(t, UserTriggered, p)

	_, err = ParsePriority("urgent")
	require.Error(t, err)
	assert.Equal(t, "background", Background.String())
}
