// Package bench generates synthetic workloads and measures how a
// TaskManager packs them.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Swind/go-task-manager/core"
)

// ErrInjectedFailure is returned by synthetic tasks chosen to fail.
var ErrInjectedFailure = errors.New("injected failure")

// Workload describes a synthetic batch. Generate with the same Workload
// always yields the same delays and outcomes.
type Workload struct {
	Tasks       int           `json:"tasks"`
	MinDelay    time.Duration `json:"min_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	FailureRate float64       `json:"failure_rate"`
	PanicRate   float64       `json:"panic_rate"`
	Seed        uint64        `json:"seed"`
}

// Validate reports the first invalid field.
func (w Workload) Validate() error {
	switch {
	case w.Tasks < 0:
		return fmt.Errorf("tasks must not be negative, got %d", w.Tasks)
	case w.MinDelay < 0 || w.MaxDelay < w.MinDelay:
		return fmt.Errorf("delays must satisfy 0 <= min <= max, got %s..%s", w.MinDelay, w.MaxDelay)
	case w.FailureRate < 0 || w.FailureRate > 1:
		return fmt.Errorf("failure rate must be in [0, 1], got %v", w.FailureRate)
	case w.PanicRate < 0 || w.FailureRate+w.PanicRate > 1:
		return fmt.Errorf("panic rate must be in [0, 1-failure rate], got %v", w.PanicRate)
	}
	return nil
}

// Outcome is the planned behaviour of one synthetic task.
type Outcome int

const (
	OutcomeSucceed Outcome = iota
	OutcomeFail
	OutcomePanic
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFail:
		return "fail"
	case OutcomePanic:
		return "panic"
	default:
		return "succeed"
	}
}

// Plan is the deterministic schedule behind one synthetic task.
type Plan struct {
	Index   int
	Delay   time.Duration
	Outcome Outcome
}

// Plans expands w into one Plan per task.
func Plans(w Workload) []Plan {
	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))
	span := w.MaxDelay - w.MinDelay

	plans := make([]Plan, w.Tasks)
	for i := range plans {
		delay := w.MinDelay
		if span > 0 {
			delay += time.Duration(rng.Int64N(int64(span) + 1))
		}
		roll := rng.Float64()
		outcome := OutcomeSucceed
		switch {
		case roll < w.FailureRate:
			outcome = OutcomeFail
		case roll < w.FailureRate+w.PanicRate:
			outcome = OutcomePanic
		}
		plans[i] = Plan{Index: i, Delay: delay, Outcome: outcome}
	}
	return plans
}

// Generate builds the work items for w. Each task sleeps for its delay,
// honouring cancellation, then succeeds with its index, fails or panics.
func Generate(w Workload) []any {
	plans := Plans(w)
	work := make([]any, len(plans))
	for i, p := range plans {
		work[i] = core.Named(fmt.Sprintf("synthetic-%03d", p.Index), p.task())
	}
	return work
}

func (p Plan) task() core.Task {
	return func(ctx context.Context) (any, error) {
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
		switch p.Outcome {
		case OutcomeFail:
			return nil, fmt.Errorf("task %d: %w", p.Index, ErrInjectedFailure)
		case OutcomePanic:
			panic(fmt.Sprintf("task %d: injected panic", p.Index))
		}
		return p.Index, nil
	}
}
