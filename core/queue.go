package core

import (
	"sync"
	"time"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// TaskItem is a submitted unit of work plus its execution metadata.
//
// Items handed out by the manager (results, events, lookups) are copies;
// mutating them has no effect on the batch.
type TaskItem struct {
	ID        TaskID
	Name      string
	Index     int
	Status    TaskStatus
	StartTime time.Time
	EndTime   time.Time
	Result    any
	Error     string
	Attempts  int

	task   Task
	cancel func()
}

// Duration returns how long the item ran, or zero if it never started or
// has not finished yet.
func (t TaskItem) Duration() time.Duration {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

func (t *TaskItem) snapshot() TaskItem {
	c := *t
	c.task = nil
	c.cancel = nil
	return c
}

// =============================================================================
// taskQueue: FIFO queue of pending items
// =============================================================================

// taskQueue preserves submission order; the dispatcher starts items in the
// order they were pushed.
type taskQueue struct {
	mu    sync.Mutex
	items []*TaskItem
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		items: make([]*TaskItem, 0, defaultQueueCap),
	}
}

func (q *taskQueue) Push(item *TaskItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *taskQueue) Pop() (*TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = nil
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

// Remove deletes the item with the given ID, keeping the order of the rest.
func (q *taskQueue) Remove(id TaskID) (*TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.ID != id {
			continue
		}
		copy(q.items[i:], q.items[i+1:])
		q.items[len(q.items)-1] = nil
		q.items = q.items[:len(q.items)-1]
		q.maybeCompactLocked()
		return item, true
	}
	return nil, false
}

// Drain removes and returns every queued item in order.
func (q *taskQueue) Drain() []*TaskItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]*TaskItem, 0, defaultQueueCap)
	return out
}

// Items returns the queued items in order without removing them.
func (q *taskQueue) Items() []*TaskItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*TaskItem, len(q.items))
	copy(out, q.items)
	return out
}

func (q *taskQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]*TaskItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]*TaskItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *taskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all items from the queue and releases references
func (q *taskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]*TaskItem, 0, defaultQueueCap)
}
