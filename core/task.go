package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context) (any, error)

// TaskID identifies a task item for the lifetime of a batch.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// ParseTaskID parses the canonical string form of a TaskID.
func ParseTaskID(s string) (TaskID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TaskID{}, fmt.Errorf("parse task id %q: %w", s, err)
	}
	return TaskID(id), nil
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the ID was never assigned.
func (id TaskID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// =============================================================================
// TaskStatus: lifecycle of a task item
// =============================================================================

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// =============================================================================
// Work sources accepted by NewTask
// =============================================================================

// Executor is implemented by objects that carry their own work.
type Executor interface {
	Execute(ctx context.Context) (any, error)
}

// Future is a value that settles asynchronously.
type Future interface {
	Await(ctx context.Context) (any, error)
}

// NewTask normalizes a work item into a Task.
//
// Accepted shapes, in order of precedence:
//   - Task or func(context.Context) (any, error)
//   - func() (any, error)
//   - func(context.Context) error and func() error
//   - func(context.Context) and func()
//   - Executor
//   - Future
//   - error: the task fails with that error
//   - nil: the task fails with ErrNilTask
//   - any other value: the task resolves to the value itself
func NewTask(work any) Task {
	switch w := work.(type) {
	case nil:
		return func(ctx context.Context) (any, error) { return nil, ErrNilTask }
	case Task:
		if w == nil {
			return NewTask(nil)
		}
		return w
	case func(context.Context) (any, error):
		if w == nil {
			return NewTask(nil)
		}
		return w
	case func() (any, error):
		return func(ctx context.Context) (any, error) { return w() }
	case func(context.Context) error:
		return func(ctx context.Context) (any, error) { return nil, w(ctx) }
	case func() error:
		return func(ctx context.Context) (any, error) { return nil, w() }
	case func(context.Context):
		return func(ctx context.Context) (any, error) {
			w(ctx)
			return nil, nil
		}
	case func():
		return func(ctx context.Context) (any, error) {
			w()
			return nil, nil
		}
	case namedWork:
		return NewTask(w.work)
	case Executor:
		return w.Execute
	case Future:
		return w.Await
	case error:
		return func(ctx context.Context) (any, error) { return nil, w }
	default:
		return func(ctx context.Context) (any, error) { return w, nil }
	}
}

// =============================================================================
// Futures
// =============================================================================

type future struct {
	done   chan struct{}
	result any
	err    error
}

// NewFuture starts fn immediately on its own goroutine and returns a Future
// for its outcome. The context passed to fn is context.Background(): like a
// promise, the work is already in flight before anyone awaits it.
func NewFuture(fn func(ctx context.Context) (any, error)) Future {
	f := &future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if rec := recover(); rec != nil {
				f.err = fmt.Errorf("panic: %v", rec)
			}
		}()
		f.result, f.err = fn(context.Background())
	}()
	return f
}

// Resolved returns a Future that is already settled with v.
func Resolved(v any) Future {
	f := &future{done: make(chan struct{}), result: v}
	close(f.done)
	return f
}

// Rejected returns a Future that is already settled with err.
func Rejected(err error) Future {
	f := &future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

func (f *future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// =============================================================================
// Context Helper
// =============================================================================
type taskManagerKeyType struct{}
type taskIDKeyType struct{}

var (
	taskManagerKey taskManagerKeyType
	taskIDKey      taskIDKeyType
)

// GetCurrentTaskManager returns the manager running the task that owns ctx.
func GetCurrentTaskManager(ctx context.Context) *TaskManager {
	if v := ctx.Value(taskManagerKey); v != nil {
		return v.(*TaskManager)
	}
	return nil
}

// TaskIDFromContext returns the ID of the task that owns ctx.
func TaskIDFromContext(ctx context.Context) (TaskID, bool) {
	id, ok := ctx.Value(taskIDKey).(TaskID)
	return id, ok
}
