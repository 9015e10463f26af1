package core

import "errors"

var (
	// ErrBatchInProgress is returned when Run or Reset is called while a batch is running.
	ErrBatchInProgress = errors.New("batch already in progress")

	// ErrTaskCancelled is recorded on items removed by CancelTask or CancelAllTasks.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrNilTask is recorded on items submitted as nil.
	ErrNilTask = errors.New("task is nil")
)

// errorMessage returns a non-empty message for err.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}
