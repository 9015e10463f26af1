package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// maxAllowedConcurrency is the maximum allowed value for maxConcurrency parameter.
	// Values higher than this could lead to excessive goroutine creation and memory exhaustion.
	maxAllowedConcurrency = 10000
)

// BatchResult is what Run returns once the queue and the active set are empty.
// Completed and Failed hold copies in settlement order.
type BatchResult struct {
	Completed []TaskItem
	Failed    []TaskItem
	Metrics   BatchMetrics
}

// settlement is sent by a task goroutine exactly once.
type settlement struct {
	id       TaskID
	result   any
	err      error
	attempts int
	panicked bool
}

// TaskManager runs batches of work with at most maxConcurrency tasks in flight.
// Tasks start in submission order; completion order is unspecified. A failing
// task never stops its siblings.
type TaskManager struct {
	maxConcurrency int

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
	retryPolicy  RetryPolicy

	// mu guards everything below it. Task goroutines never touch TaskItems;
	// they report through the settlement channel and the dispatcher applies
	// the transition under mu.
	mu           sync.Mutex
	queue        *taskQueue
	active       map[TaskID]*TaskItem
	items        map[TaskID]*TaskItem
	completed    []*TaskItem
	failed       []*TaskItem
	peak         int
	batchMetrics BatchMetrics

	running atomic.Bool
	wake    chan struct{}

	events  *eventHub
	history executionHistory

	nameMu sync.Mutex
	name   string
}

// NewTaskManager creates a TaskManager with the specified concurrency limit.
// Panics if maxConcurrency is out of valid range [1, 10000].
// A nil config selects DefaultManagerConfig.
func NewTaskManager(maxConcurrency int, config *ManagerConfig) *TaskManager {
	if maxConcurrency < 1 {
		panic("TaskManager: maxConcurrency must be at least 1")
	}
	if maxConcurrency > maxAllowedConcurrency {
		panic(fmt.Sprintf("TaskManager: maxConcurrency must not exceed %d", maxAllowedConcurrency))
	}

	cfg := config.withDefaults()
	return &TaskManager{
		maxConcurrency: maxConcurrency,
		logger:         cfg.Logger,
		panicHandler:   cfg.PanicHandler,
		metrics:        cfg.Metrics,
		retryPolicy:    cfg.RetryPolicy,
		queue:          newTaskQueue(),
		active:         make(map[TaskID]*TaskItem),
		items:          make(map[TaskID]*TaskItem),
		wake:           make(chan struct{}, 1),
		events:         newEventHub(),
		history:        newExecutionHistory(cfg.HistoryCapacity),
	}
}

// MaxConcurrency returns the maximum number of concurrent tasks.
func (m *TaskManager) MaxConcurrency() int {
	return m.maxConcurrency
}

// PendingTaskCount returns the number of queued tasks waiting to start.
func (m *TaskManager) PendingTaskCount() int {
	return m.queue.Len()
}

// ActiveTaskCount returns the size of the active set.
func (m *TaskManager) ActiveTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// IsRunning reports whether a batch is in progress.
func (m *TaskManager) IsRunning() bool {
	return m.running.Load()
}

// Name returns the name of the task manager
func (m *TaskManager) Name() string {
	m.nameMu.Lock()
	defer m.nameMu.Unlock()
	return m.name
}

// SetName sets the name of the task manager
func (m *TaskManager) SetName(name string) {
	m.nameMu.Lock()
	defer m.nameMu.Unlock()
	m.name = name
}

func (m *TaskManager) observabilityName() string {
	name := m.Name()
	if name == "" {
		return "task-manager"
	}
	return name
}

// Subscribe registers handler for events of type t and returns a function
// that removes it.
func (m *TaskManager) Subscribe(t EventType, handler EventHandler) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}
	return m.events.subscribe(t, handler)
}

// Task returns a copy of the item with the given ID from the current or
// most recent batch.
func (m *TaskManager) Task(id TaskID) (TaskItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return TaskItem{}, false
	}
	return item.snapshot(), true
}

// PendingTasks returns copies of the queued items in start order.
func (m *TaskManager) PendingTasks() []TaskItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshots(m.queue.Items())
}

// ActiveTasks returns copies of the items in the active set, by submission index.
func (m *TaskManager) ActiveTasks() []TaskItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TaskItem, 0, len(m.active))
	for _, item := range m.active {
		out = append(out, item.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Metrics returns the metrics of the most recent batch.
func (m *TaskManager) Metrics() BatchMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchMetrics
}

// Stats returns current observability data for this manager.
func (m *TaskManager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		Name:           m.observabilityName(),
		MaxConcurrency: m.maxConcurrency,
		Pending:        m.queue.Len(),
		Active:         len(m.active),
		Completed:      len(m.completed),
		Failed:         len(m.failed),
		PeakActive:     m.peak,
		Running:        m.running.Load(),
	}
	for _, item := range m.failed {
		if item.Status == TaskStatusCancelled {
			stats.Cancelled++
		}
	}
	m.mu.Unlock()

	if last, ok := m.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns settled task records in newest-first order.
func (m *TaskManager) RecentTasks(limit int) []TaskExecutionRecord {
	return m.history.Recent(limit)
}

// Reset clears the partitions, metrics and history left by previous batches.
func (m *TaskManager) Reset() error {
	if m.running.Load() {
		return ErrBatchInProgress
	}
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.history.Clear()
	return nil
}

func (m *TaskManager) resetLocked() {
	m.queue.Clear()
	m.active = make(map[TaskID]*TaskItem)
	m.items = make(map[TaskID]*TaskItem)
	m.completed = nil
	m.failed = nil
	m.peak = 0
	m.batchMetrics = BatchMetrics{}
}

// RunTasks is Run for already-normalized tasks.
func (m *TaskManager) RunTasks(ctx context.Context, tasks ...Task) (*BatchResult, error) {
	work := make([]any, len(tasks))
	for i, t := range tasks {
		work[i] = t
	}
	return m.Run(ctx, work)
}

// Run executes every work item (see NewTask for accepted shapes) and blocks
// until all of them have settled or been cancelled.
//
// Task errors never surface here; inspect BatchResult.Failed. The returned
// error is ErrBatchInProgress when another batch is running, or ctx.Err() when
// ctx ended the batch early (the partial result is still returned, with every
// unfinished task cancelled).
func (m *TaskManager) Run(ctx context.Context, work []any) (*BatchResult, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}
	defer m.running.Store(false)

	name := m.observabilityName()
	runCtx, cancelRun := context.WithCancel(context.WithValue(ctx, taskManagerKey, m))
	defer cancelRun()

	// Every task goroutine sends exactly once, so a buffer of len(work)
	// keeps late senders of cancelled tasks from blocking.
	settled := make(chan settlement, len(work))

	start := time.Now()
	m.mu.Lock()
	m.resetLocked()
	for i, w := range work {
		item := &TaskItem{
			ID:     GenerateTaskID(),
			Name:   resolveTaskName(w, i),
			Index:  i,
			Status: TaskStatusPending,
			task:   NewTask(w),
		}
		m.items[item.ID] = item
		m.queue.Push(item)
	}
	m.mu.Unlock()

	m.logger.Debug("batch started",
		F("manager", name),
		F("tasks", len(work)),
		F("concurrency", m.maxConcurrency),
	)
	m.metrics.RecordQueueDepth(name, len(work))

	var runErr error
	done := ctx.Done()
	interrupt := func() {
		done = nil
		runErr = ctx.Err()
		m.logger.Warn("batch interrupted", F("manager", name), F("error", runErr))
		m.CancelAllTasks()
	}

	m.fill(runCtx, settled)
	for !m.idle() {
		select {
		case s := <-settled:
			// Tasks observe ctx too; outcomes caused by it count as cancelled.
			if done != nil && ctx.Err() != nil {
				interrupt()
			}
			m.settle(s)
			m.fill(runCtx, settled)
		case <-m.wake:
			m.fill(runCtx, settled)
		case <-done:
			interrupt()
		}
	}
	end := time.Now()

	m.mu.Lock()
	m.batchMetrics = calculateMetrics(start, end, m.maxConcurrency, m.peak, m.completed, m.failed)
	result := &BatchResult{
		Completed: snapshots(m.completed),
		Failed:    snapshots(m.failed),
		Metrics:   m.batchMetrics,
	}
	m.mu.Unlock()

	m.metrics.RecordActiveTasks(name, 0)
	m.metrics.RecordQueueDepth(name, 0)
	m.metrics.RecordBatch(name, result.Metrics)
	m.logger.Info("batch finished",
		F("manager", name),
		F("completed", result.Metrics.Completed),
		F("failed", result.Metrics.Failed),
		F("duration", result.Metrics.TotalDuration),
		F("efficiency", fmt.Sprintf("%.1f%%", result.Metrics.Efficiency)),
	)

	metrics := result.Metrics
	m.events.publish(Event{Type: EventBatchFinished, Metrics: &metrics, At: end})

	return result, runErr
}

func (m *TaskManager) idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.IsEmpty() && len(m.active) == 0
}

// signal nudges the dispatcher after capacity was freed outside of a settlement.
func (m *TaskManager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// fill starts queued items until the active set is full or the queue is empty.
// Only the dispatcher (the goroutine inside Run) calls it.
func (m *TaskManager) fill(ctx context.Context, settled chan<- settlement) {
	name := m.observabilityName()
	for {
		m.mu.Lock()
		if len(m.active) >= m.maxConcurrency {
			m.mu.Unlock()
			return
		}
		item, ok := m.queue.Pop()
		if !ok {
			m.mu.Unlock()
			return
		}

		taskCtx, cancel := context.WithCancel(context.WithValue(ctx, taskIDKey, item.ID))
		item.Status = TaskStatusRunning
		item.StartTime = time.Now()
		item.cancel = cancel
		m.active[item.ID] = item
		if len(m.active) > m.peak {
			m.peak = len(m.active)
		}
		active, pending := len(m.active), m.queue.Len()
		task := item.task
		snap := item.snapshot()
		m.mu.Unlock()

		go m.execute(taskCtx, snap.ID, task, settled)

		m.metrics.RecordActiveTasks(name, active)
		m.metrics.RecordQueueDepth(name, pending)
		m.events.publish(Event{Type: EventTaskStarted, Task: snap, At: snap.StartTime})
	}
}

// execute runs one task, retrying per the policy, and reports the outcome.
func (m *TaskManager) execute(ctx context.Context, id TaskID, task Task, settled chan<- settlement) {
	s := settlement{id: id}
	defer func() { settled <- s }()

	for attempt := 0; ; attempt++ {
		s.attempts++
		s.result, s.panicked, s.err = m.invoke(ctx, id, task)
		if s.err == nil || attempt >= m.retryPolicy.MaxRetries || ctx.Err() != nil {
			return
		}

		delay := m.retryPolicy.calculateDelay(attempt)
		m.logger.Debug("retrying task",
			F("manager", m.observabilityName()),
			F("task_id", id.String()),
			F("attempt", s.attempts),
			F("delay", delay),
			F("error", s.err),
		)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// invoke calls task with panic recovery.
func (m *TaskManager) invoke(ctx context.Context, id TaskID, task Task) (result any, panicked bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			name := m.observabilityName()
			m.panicHandler.HandlePanic(ctx, name, id, rec, debug.Stack())
			m.metrics.RecordTaskPanic(name, rec)
			result, panicked, err = nil, true, fmt.Errorf("panic: %v", rec)
		}
	}()
	result, err = task(ctx)
	return result, false, err
}

// settle applies a task outcome. Outcomes of items that are no longer in the
// active set (cancelled while running) are discarded.
func (m *TaskManager) settle(s settlement) {
	m.mu.Lock()
	item, ok := m.active[s.id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.active, s.id)
	if item.cancel != nil {
		item.cancel()
		item.cancel = nil
	}
	item.EndTime = time.Now()
	item.Attempts = s.attempts
	if s.err != nil {
		item.Status = TaskStatusFailed
		item.Error = errorMessage(s.err)
		m.failed = append(m.failed, item)
	} else {
		item.Status = TaskStatusCompleted
		item.Result = s.result
		m.completed = append(m.completed, item)
	}
	active := len(m.active)
	snap := item.snapshot()
	m.mu.Unlock()

	m.metrics.RecordActiveTasks(m.observabilityName(), active)
	m.finish(snap, s.panicked)
}

// finish records a settled item and notifies subscribers.
func (m *TaskManager) finish(item TaskItem, panicked bool) {
	name := m.observabilityName()
	m.history.Add(TaskExecutionRecord{
		TaskID:      item.ID,
		Name:        item.Name,
		Index:       item.Index,
		ManagerName: name,
		Status:      item.Status,
		Error:       item.Error,
		Attempts:    item.Attempts,
		StartedAt:   item.StartTime,
		FinishedAt:  item.EndTime,
		Duration:    item.Duration(),
		Panicked:    panicked,
	})
	m.metrics.RecordTaskDuration(name, item.Status, item.Duration())

	var evType EventType
	switch item.Status {
	case TaskStatusCompleted:
		evType = EventTaskCompleted
		m.logger.Debug("task completed", F("manager", name), F("task", item.Name), F("duration", item.Duration()))
	case TaskStatusCancelled:
		evType = EventTaskCancelled
		m.logger.Debug("task cancelled", F("manager", name), F("task", item.Name))
	default:
		evType = EventTaskFailed
		m.logger.Debug("task failed", F("manager", name), F("task", item.Name), F("error", item.Error))
	}
	m.events.publish(Event{Type: evType, Task: item, At: item.EndTime})
}

// cancelLocked moves item to the failed partition as cancelled.
// The caller must hold mu and have removed item from the queue or active set.
func (m *TaskManager) cancelLocked(item *TaskItem) TaskItem {
	if item.cancel != nil {
		item.cancel()
		item.cancel = nil
	}
	item.Status = TaskStatusCancelled
	item.Error = ErrTaskCancelled.Error()
	item.EndTime = time.Now()
	m.failed = append(m.failed, item)
	return item.snapshot()
}

// CancelTask cancels a queued or active task. An active task's context is
// cancelled and its eventual outcome discarded; work that ignores its context
// keeps running in the background. Returns false if id is unknown or the
// task has already settled.
func (m *TaskManager) CancelTask(id TaskID) bool {
	m.mu.Lock()
	item, ok := m.active[id]
	if ok {
		delete(m.active, id)
	} else if item, ok = m.queue.Remove(id); !ok {
		m.mu.Unlock()
		return false
	}
	snap := m.cancelLocked(item)
	active, pending := len(m.active), m.queue.Len()
	m.mu.Unlock()

	name := m.observabilityName()
	m.metrics.RecordActiveTasks(name, active)
	m.metrics.RecordQueueDepth(name, pending)
	m.finish(snap, false)
	m.signal()
	return true
}

// CancelAllTasks cancels every queued task, then every active task.
func (m *TaskManager) CancelAllTasks() {
	m.mu.Lock()
	queued := m.queue.Drain()
	active := make([]*TaskItem, 0, len(m.active))
	for _, item := range m.active {
		active = append(active, item)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Index < active[j].Index })
	m.active = make(map[TaskID]*TaskItem)

	snaps := make([]TaskItem, 0, len(queued)+len(active))
	for _, item := range queued {
		snaps = append(snaps, m.cancelLocked(item))
	}
	for _, item := range active {
		snaps = append(snaps, m.cancelLocked(item))
	}
	m.mu.Unlock()

	if len(snaps) == 0 {
		return
	}

	name := m.observabilityName()
	m.metrics.RecordActiveTasks(name, 0)
	m.metrics.RecordQueueDepth(name, 0)
	m.logger.Warn("cancelled all tasks", F("manager", name), F("count", len(snaps)))
	for _, snap := range snaps {
		m.finish(snap, false)
	}
	m.signal()
}

func snapshots(items []*TaskItem) []TaskItem {
	out := make([]TaskItem, len(items))
	for i, item := range items {
		out[i] = item.snapshot()
	}
	return out
}
