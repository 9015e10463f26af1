package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-task-manager/core"
	"github.com/google/uuid"
)

// ReportStore persists finished reports.
type ReportStore interface {
	SaveReport(ctx context.Context, r *Report) error
}

// Runner runs workloads on a single TaskManager, one at a time.
type Runner struct {
	manager *core.TaskManager
	store   ReportStore
	logger  core.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	mu   sync.Mutex
	last *Report
}

// NewRunner creates a Runner. store and logger may be nil.
func NewRunner(manager *core.TaskManager, store ReportStore, logger core.Logger) *Runner {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Runner{manager: manager, store: store, logger: logger}
}

// Manager returns the TaskManager the runner drives.
func (r *Runner) Manager() *core.TaskManager {
	return r.manager
}

// Busy reports whether a workload is running.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// Last returns the most recent report produced by this runner.
func (r *Runner) Last() (*Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.last != nil
}

// Run executes w and blocks until the batch ends. When ctx ends the batch
// early the partial report is still returned and saved, together with
// ctx.Err().
func (r *Runner) Run(ctx context.Context, name string, w Workload) (*Report, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if !r.busy.CompareAndSwap(false, true) {
		return nil, core.ErrBatchInProgress
	}
	defer r.busy.Store(false)
	return r.run(ctx, uuid.New(), name, w)
}

// Start launches w in the background and returns the ID its report will
// carry. Use Wait to block until it has finished.
func (r *Runner) Start(ctx context.Context, name string, w Workload) (uuid.UUID, error) {
	if err := w.Validate(); err != nil {
		return uuid.Nil, err
	}
	if !r.busy.CompareAndSwap(false, true) {
		return uuid.Nil, core.ErrBatchInProgress
	}

	id := uuid.New()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Store(false)
		if _, err := r.run(ctx, id, name, w); err != nil {
			r.logger.Warn("background batch ended with error", core.F("report", id.String()), core.F("error", err))
		}
	}()
	return id, nil
}

// Wait blocks until every batch launched by Start has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, id uuid.UUID, name string, w Workload) (*Report, error) {
	r.logger.Info("starting workload",
		core.F("report", id.String()),
		core.F("name", name),
		core.F("tasks", w.Tasks),
		core.F("concurrency", r.manager.MaxConcurrency()),
	)

	result, runErr := r.manager.Run(ctx, Generate(w))
	if errors.Is(runErr, core.ErrBatchInProgress) {
		return nil, runErr
	}

	report := NewReport(id, name, r.manager.MaxConcurrency(), w, result)
	report.Interrupted = runErr != nil

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	if r.store != nil {
		// The batch context may already be cancelled; the report is still kept.
		if err := r.store.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			return report, errors.Join(runErr, fmt.Errorf("save report: %w", err))
		}
	}
	r.logger.Info("workload finished", core.F("report", id.String()), core.F("summary", report.Summary()))
	return report, runErr
}
