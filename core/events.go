package core

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTaskStarted   EventType = "task-started"
	EventTaskCompleted EventType = "task-completed"
	EventTaskFailed    EventType = "task-failed"
	EventTaskCancelled EventType = "task-cancelled"
	EventBatchFinished EventType = "batch-finished"
)

// Event is delivered to subscribers on every task transition.
// Metrics is only set for EventBatchFinished.
type Event struct {
	Type    EventType
	Task    TaskItem
	Metrics *BatchMetrics
	At      time.Time
}

// EventHandler receives events. Handlers run synchronously on the goroutine
// that caused the transition, outside the manager's lock, so they may call
// back into the manager. They must be safe for concurrent use.
type EventHandler func(Event)

type subscription struct {
	id      uint64
	handler EventHandler
}

type eventHub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscription
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[EventType][]subscription)}
}

func (h *eventHub) subscribe(t EventType, handler EventHandler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[t] = append(h.subs[t], subscription{id: id, handler: handler})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(t, id) })
	}
}

func (h *eventHub) unsubscribe(t EventType, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[t]
	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(h.subs, t)
	} else {
		h.subs[t] = kept
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.RLock()
	subs := h.subs[ev.Type]
	if len(subs) == 0 {
		h.mu.RUnlock()
		return
	}
	handlers := make([]EventHandler, len(subs))
	for i, s := range subs {
		handlers[i] = s.handler
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}
