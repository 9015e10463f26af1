package core

import (
	"math"
	"testing"
	"time"
)

func timedItem(status TaskStatus, start time.Time, d time.Duration) *TaskItem {
	return &TaskItem{Status: status, StartTime: start, EndTime: start.Add(d)}
}

// TestCalculateMetrics verifies the efficiency formula
// Given: Four 100ms tasks at concurrency 2 finishing in 250ms
// When: calculateMetrics runs
// Then: Theoretical time is 2 waves of 100ms, efficiency is 80% and throughput 16/s
func TestCalculateMetrics(t *testing.T) {
	// Arrange
	start := time.Unix(1000, 0)
	end := start.Add(250 * time.Millisecond)
	completed := []*TaskItem{
		timedItem(TaskStatusCompleted, start, 100*time.Millisecond),
		timedItem(TaskStatusCompleted, start, 100*time.Millisecond),
		timedItem(TaskStatusCompleted, start.Add(100*time.Millisecond), 100*time.Millisecond),
	}
	failed := []*TaskItem{
		timedItem(TaskStatusFailed, start.Add(100*time.Millisecond), 100*time.Millisecond),
	}

	// Act
	m := calculateMetrics(start, end, 2, 2, completed, failed)

	// Assert
	if m.TotalTasks != 4 || m.Completed != 3 || m.Failed != 1 {
		t.Fatalf("counts = %d/%d/%d, want 4/3/1", m.TotalTasks, m.Completed, m.Failed)
	}
	if m.AverageTaskTime != 100*time.Millisecond {
		t.Errorf("AverageTaskTime = %v, want 100ms", m.AverageTaskTime)
	}
	if m.TheoreticalTime != 200*time.Millisecond {
		t.Errorf("TheoreticalTime = %v, want 200ms", m.TheoreticalTime)
	}
	if math.Abs(m.Efficiency-80) > 1e-9 {
		t.Errorf("Efficiency = %v, want 80", m.Efficiency)
	}
	if math.Abs(m.Throughput-16) > 1e-9 {
		t.Errorf("Throughput = %v, want 16", m.Throughput)
	}
	if m.TotalDuration != 250*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 250ms", m.TotalDuration)
	}
}

// TestCalculateMetrics_ZeroDuration verifies there is no division by zero
// Given: An empty batch with identical start and end
// When: calculateMetrics runs
// Then: All derived figures are zero and finite
func TestCalculateMetrics_ZeroDuration(t *testing.T) {
	now := time.Now()
	m := calculateMetrics(now, now, 4, 0, nil, nil)

	if m.Efficiency != 0 || m.Throughput != 0 || m.TheoreticalTime != 0 {
		t.Errorf("metrics = %+v, want zero figures", m)
	}
	if math.IsNaN(m.Efficiency) || math.IsInf(m.Throughput, 0) {
		t.Error("metrics should be finite")
	}
}

// TestCalculateMetrics_CancelledQueued verifies never-started items
// Given: One completed item and two cancelled items that never started
// When: calculateMetrics runs
// Then: Cancelled is counted but the average only uses timed items
func TestCalculateMetrics_CancelledQueued(t *testing.T) {
	start := time.Unix(0, 0)
	end := start.Add(time.Second)
	completed := []*TaskItem{timedItem(TaskStatusCompleted, start, 500*time.Millisecond)}
	failed := []*TaskItem{
		{Status: TaskStatusCancelled, EndTime: end},
		{Status: TaskStatusCancelled, EndTime: end},
	}

	m := calculateMetrics(start, end, 1, 1, completed, failed)

	if m.Cancelled != 2 {
		t.Errorf("Cancelled = %d, want 2", m.Cancelled)
	}
	if m.AverageTaskTime != 500*time.Millisecond {
		t.Errorf("AverageTaskTime = %v, want 500ms", m.AverageTaskTime)
	}
	if m.TheoreticalTime != 1500*time.Millisecond {
		t.Errorf("TheoreticalTime = %v, want 1.5s", m.TheoreticalTime)
	}
}
