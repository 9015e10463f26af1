package bench

import (
	"fmt"
	"sort"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/google/uuid"
)

// Report is the persisted record of one benchmark batch.
type Report struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	CreatedAt   time.Time         `json:"created_at"`
	Concurrency int               `json:"concurrency"`
	Workload    Workload          `json:"workload"`
	Metrics     core.BatchMetrics `json:"metrics"`
	Interrupted bool              `json:"interrupted"`
	Tasks       []TaskOutcome     `json:"tasks,omitempty"`
}

// TaskOutcome is how one task of a report ended.
type TaskOutcome struct {
	Index    int             `json:"index"`
	Name     string          `json:"name"`
	Status   core.TaskStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"attempts"`
	Duration time.Duration   `json:"duration"`
}

// NewReport builds a report from a finished batch.
func NewReport(id uuid.UUID, name string, concurrency int, w Workload, result *core.BatchResult) *Report {
	r := &Report{
		ID:          id,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Concurrency: concurrency,
		Workload:    w,
	}
	if result == nil {
		return r
	}
	r.Metrics = result.Metrics
	r.Tasks = make([]TaskOutcome, 0, len(result.Completed)+len(result.Failed))
	for _, items := range [][]core.TaskItem{result.Completed, result.Failed} {
		for _, item := range items {
			r.Tasks = append(r.Tasks, TaskOutcome{
				Index:    item.Index,
				Name:     item.Name,
				Status:   item.Status,
				Error:    item.Error,
				Attempts: item.Attempts,
				Duration: item.Duration(),
			})
		}
	}
	sort.Slice(r.Tasks, func(i, j int) bool { return r.Tasks[i].Index < r.Tasks[j].Index })
	return r
}

// Summary is a one-line description of the report.
func (r *Report) Summary() string {
	m := r.Metrics
	return fmt.Sprintf("%s: %d tasks, %d completed, %d failed (%d cancelled), %s total, %.1f%% efficient, %.2f tasks/s",
		r.Name, m.TotalTasks, m.Completed, m.Failed, m.Cancelled,
		m.TotalDuration.Round(time.Millisecond), m.Efficiency, m.Throughput)
}
