package core

import "time"

// TaskExecutionRecord captures a settled task.
type TaskExecutionRecord struct {
	TaskID      TaskID
	Name        string
	Index       int
	ManagerName string
	Status      TaskStatus
	Error       string
	Attempts    int
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Panicked    bool
}

// ManagerStats represents runtime observability state for a task manager.
type ManagerStats struct {
	Name           string
	MaxConcurrency int
	Pending        int
	Active         int
	Completed      int
	Failed         int
	Cancelled      int
	PeakActive     int
	Running        bool
	LastTaskName   string
	LastTaskAt     time.Time
}
