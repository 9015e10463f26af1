package core

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

const defaultTaskHistoryCapacity = 100

type executionHistory struct {
	mu    sync.Mutex
	items []TaskExecutionRecord
	head  int
	count int
}

func newExecutionHistory(capacity int) executionHistory {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return executionHistory{items: make([]TaskExecutionRecord, capacity)}
}

func (h *executionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

func (h *executionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskExecutionRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *executionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

func (h *executionHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.items)
	h.head = 0
	h.count = 0
}

// Named attaches a display name to a work item. The name shows up on the
// TaskItem, in events and in the execution history.
func Named(name string, work any) any {
	return namedWork{name: name, work: work}
}

type namedWork struct {
	name string
	work any
}

// resolveTaskName picks a display name for a work item: an explicit name,
// the function symbol for funcs, or the dynamic type for anything else.
func resolveTaskName(work any, index int) string {
	if nw, ok := work.(namedWork); ok && nw.name != "" {
		return nw.name
	}

	if work == nil {
		return fmt.Sprintf("task-%d", index)
	}

	v := reflect.ValueOf(work)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T#%d", work, index)
	}

	pc := v.Pointer()
	if pc == 0 {
		return fmt.Sprintf("task-%d", index)
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil || fn.Name() == "" {
		return fmt.Sprintf("task-%d", index)
	}
	return fmt.Sprintf("%s#%d", fn.Name(), index)
}
