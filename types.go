package taskmanager

import "github.com/Swind/go-task-manager/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskmanager package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskID identifies a task item within a batch
type TaskID = core.TaskID

// TaskStatus is the lifecycle state of a task item
type TaskStatus = core.TaskStatus

// TaskItem is a submitted task plus its execution metadata
type TaskItem = core.TaskItem

// TaskManager runs batches with bounded concurrency
type TaskManager = core.TaskManager

// ManagerConfig configures logging, panics, metrics and retries
type ManagerConfig = core.ManagerConfig

// BatchResult and BatchMetrics describe a finished batch
type BatchResult = core.BatchResult
type BatchMetrics = core.BatchMetrics

// Event, EventType and EventHandler are the subscription API
type Event = core.Event
type EventType = core.EventType
type EventHandler = core.EventHandler

// Status constants
const (
	TaskStatusPending   = core.TaskStatusPending
	TaskStatusRunning   = core.TaskStatusRunning
	TaskStatusCompleted = core.TaskStatusCompleted
	TaskStatusFailed    = core.TaskStatusFailed
	TaskStatusCancelled = core.TaskStatusCancelled
)

// Event constants
const (
	EventTaskStarted   = core.EventTaskStarted
	EventTaskCompleted = core.EventTaskCompleted
	EventTaskFailed    = core.EventTaskFailed
	EventTaskCancelled = core.EventTaskCancelled
	EventBatchFinished = core.EventBatchFinished
)

// Errors
var (
	ErrBatchInProgress = core.ErrBatchInProgress
	ErrTaskCancelled   = core.ErrTaskCancelled
	ErrNilTask         = core.ErrNilTask
)

// NewTaskManager creates a TaskManager with the given concurrency limit.
// It panics if maxConcurrency is outside [1, 10000].
func NewTaskManager(maxConcurrency int, config *ManagerConfig) *TaskManager {
	return core.NewTaskManager(maxConcurrency, config)
}

// Work helpers
var (
	Named              = core.Named
	NewFuture          = core.NewFuture
	Resolved           = core.Resolved
	Rejected           = core.Rejected
	DefaultRetryPolicy = core.DefaultRetryPolicy
)

// GetCurrentTaskManager retrieves the running TaskManager from a task's context
var GetCurrentTaskManager = core.GetCurrentTaskManager
