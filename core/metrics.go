package core

import (
	"math"
	"time"
)

// BatchMetrics summarises one call to Run.
type BatchMetrics struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalDuration   time.Duration
	AverageTaskTime time.Duration

	// TheoreticalTime is ceil(TotalTasks/Concurrency) * AverageTaskTime, the
	// batch duration under perfect packing.
	TheoreticalTime time.Duration

	// Efficiency is TheoreticalTime / TotalDuration, in percent.
	Efficiency float64

	// Throughput is settled tasks per second.
	Throughput float64

	TotalTasks  int
	Completed   int
	Failed      int
	Cancelled   int
	Concurrency int
	PeakActive  int
}

// calculateMetrics derives batch metrics from the settled items.
// Efficiency and throughput are left at zero when the batch took no
// measurable time.
func calculateMetrics(start, end time.Time, concurrency, peak int, completed, failed []*TaskItem) BatchMetrics {
	m := BatchMetrics{
		StartTime:   start,
		EndTime:     end,
		Completed:   len(completed),
		Failed:      len(failed),
		Concurrency: concurrency,
		PeakActive:  peak,
	}
	m.TotalTasks = m.Completed + m.Failed
	if end.After(start) {
		m.TotalDuration = end.Sub(start)
	}

	var sum time.Duration
	timed := 0
	for _, items := range [][]*TaskItem{completed, failed} {
		for _, item := range items {
			if item.Status == TaskStatusCancelled {
				m.Cancelled++
			}
			if d := item.Duration(); d > 0 {
				sum += d
				timed++
			}
		}
	}
	if timed > 0 {
		m.AverageTaskTime = sum / time.Duration(timed)
	}

	if concurrency > 0 && m.TotalTasks > 0 {
		waves := int64(math.Ceil(float64(m.TotalTasks) / float64(concurrency)))
		m.TheoreticalTime = time.Duration(waves) * m.AverageTaskTime
	}

	if m.TotalDuration > 0 {
		m.Efficiency = float64(m.TheoreticalTime) / float64(m.TotalDuration) * 100
		m.Throughput = float64(m.TotalTasks) / m.TotalDuration.Seconds()
	}
	return m
}
