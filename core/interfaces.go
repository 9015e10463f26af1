package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// The panic is always converted into a task failure afterwards; the handler
// only decides how it is reported.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked task
	// - managerName: The name of the task manager where the panic occurred
	// - taskID: The ID of the task item that panicked
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, managerName string, taskID TaskID, panicInfo any, stackTrace []byte)
}

// LoggerPanicHandler reports panics through a Logger at error level.
type LoggerPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information with the stack trace as a field.
func (h *LoggerPanicHandler) HandlePanic(ctx context.Context, managerName string, taskID TaskID, panicInfo any, stackTrace []byte) {
	if h == nil || h.Logger == nil {
		return
	}
	h.Logger.Error("task panicked",
		F("manager", managerName),
		F("task_id", taskID.String()),
		F("panic", fmt.Sprint(panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (see observability/prometheus).
//
// Methods should be non-blocking and fast to avoid impacting dispatch.
type Metrics interface {
	// RecordTaskDuration records how long a settled task ran and how it ended.
	RecordTaskDuration(managerName string, status TaskStatus, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(managerName string, panicInfo any)

	// RecordQueueDepth records the number of tasks waiting to start.
	RecordQueueDepth(managerName string, depth int)

	// RecordActiveTasks records the current size of the active set.
	RecordActiveTasks(managerName string, active int)

	// RecordBatch records the summary of a finished batch.
	RecordBatch(managerName string, metrics BatchMetrics)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(managerName string, status TaskStatus, duration time.Duration) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(managerName string, panicInfo any) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(managerName string, depth int) {
}

// RecordActiveTasks is a no-op.
func (m *NilMetrics) RecordActiveTasks(managerName string, active int) {
}

// RecordBatch is a no-op.
func (m *NilMetrics) RecordBatch(managerName string, metrics BatchMetrics) {
}

// =============================================================================
// ManagerConfig: Configuration for TaskManager
// =============================================================================

// ManagerConfig holds configuration options for TaskManager.
// All fields are optional; zero values are replaced by defaults.
type ManagerConfig struct {
	// Logger receives dispatcher diagnostics. Defaults to NoOpLogger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to LoggerPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RetryPolicy controls re-invocation of failing tasks. Defaults to NoRetry.
	RetryPolicy RetryPolicy

	// HistoryCapacity bounds the RecentTasks ring. Defaults to 100.
	HistoryCapacity int
}

// DefaultManagerConfig returns a config with default handlers.
func DefaultManagerConfig() *ManagerConfig {
	logger := NewNoOpLogger()
	return &ManagerConfig{
		Logger:          logger,
		PanicHandler:    &LoggerPanicHandler{Logger: logger},
		Metrics:         &NilMetrics{},
		RetryPolicy:     NoRetry(),
		HistoryCapacity: defaultTaskHistoryCapacity,
	}
}

func (c *ManagerConfig) withDefaults() *ManagerConfig {
	out := DefaultManagerConfig()
	if c == nil {
		return out
	}
	if c.Logger != nil {
		out.Logger = c.Logger
		out.PanicHandler = &LoggerPanicHandler{Logger: c.Logger}
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.RetryPolicy.MaxRetries > 0 {
		out.RetryPolicy = c.RetryPolicy
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	return out
}
