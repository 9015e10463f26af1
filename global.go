package taskmanager

import (
	"context"
	"sort"
	"sync"
)

// RunAll runs work on a fresh TaskManager with the given concurrency limit
// and returns once every task has settled.
func RunAll(ctx context.Context, concurrency int, work ...any) (*BatchResult, error) {
	return NewTaskManager(concurrency, nil).Run(ctx, work)
}

// Results returns the results of items in submission order. Items whose
// result is not an R are skipped.
func Results[R any](items []TaskItem) []R {
	sorted := make([]TaskItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	out := make([]R, 0, len(sorted))
	for _, item := range sorted {
		if r, ok := item.Result.(R); ok {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// Global Task Manager Helper (Singleton)
// =============================================================================

var (
	globalTaskManager *TaskManager
	globalMu          sync.Mutex
)

// InitGlobalTaskManager initializes the global task manager with the
// specified concurrency limit. Later calls are no-ops until shutdown.
func InitGlobalTaskManager(maxConcurrency int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTaskManager != nil {
		return // Already initialized
	}

	globalTaskManager = NewTaskManager(maxConcurrency, nil)
	globalTaskManager.SetName("global-manager")
}

// GlobalTaskManager returns the global task manager instance.
// It panics if InitGlobalTaskManager has not been called.
func GlobalTaskManager() *TaskManager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTaskManager == nil {
		panic("GlobalTaskManager not initialized. Call InitGlobalTaskManager() first.")
	}
	return globalTaskManager
}

// ShutdownGlobalTaskManager cancels any running batch on the global task
// manager and releases it.
func ShutdownGlobalTaskManager() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTaskManager != nil {
		globalTaskManager.CancelAllTasks()
		globalTaskManager = nil
	}
}
