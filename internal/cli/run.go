package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/bench"
	"github.com/Swind/go-task-manager/internal/sqlite"
	"github.com/spf13/cobra"
)

// benchDefaults is the flag-backed view of config.BenchConfig.
type benchDefaults struct {
	name        string
	concurrency int
	retries     int
	tasks       int
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
	panicRate   float64
	seed        uint64
}

func (d benchDefaults) benchWorkload() bench.Workload {
	return bench.Workload{
		Tasks:       d.tasks,
		MinDelay:    d.minDelay,
		MaxDelay:    d.maxDelay,
		FailureRate: d.failureRate,
		PanicRate:   d.panicRate,
		Seed:        d.seed,
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		opts   benchDefaults
		noSave bool
		detail bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload and report its efficiency",
		Long: `Run a synthetic workload through the task manager.

Flags override the [bench] section of config.toml. Ctrl-C cancels the
batch; the partial report is still printed and saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			merged := a.workload()
			flags := cmd.Flags()
			if flags.Changed("name") {
				merged.name = opts.name
			}
			if flags.Changed("concurrency") {
				merged.concurrency = opts.concurrency
			}
			if flags.Changed("retries") {
				merged.retries = opts.retries
			}
			if flags.Changed("tasks") {
				merged.tasks = opts.tasks
			}
			if flags.Changed("min-delay") {
				merged.minDelay = opts.minDelay
			}
			if flags.Changed("max-delay") {
				merged.maxDelay = opts.maxDelay
			}
			if flags.Changed("failure-rate") {
				merged.failureRate = opts.failureRate
			}
			if flags.Changed("panic-rate") {
				merged.panicRate = opts.panicRate
			}
			if flags.Changed("seed") {
				merged.seed = opts.seed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runBench(ctx, cmd.OutOrStdout(), merged, !noSave, detail)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "Report name")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "Maximum tasks in flight")
	f.IntVar(&opts.retries, "retries", 0, "Retries per failing task")
	f.IntVarP(&opts.tasks, "tasks", "n", 0, "Number of synthetic tasks")
	f.DurationVar(&opts.minDelay, "min-delay", 0, "Shortest task duration")
	f.DurationVar(&opts.maxDelay, "max-delay", 0, "Longest task duration")
	f.Float64Var(&opts.failureRate, "failure-rate", 0, "Fraction of tasks that fail")
	f.Float64Var(&opts.panicRate, "panic-rate", 0, "Fraction of tasks that panic")
	f.Uint64Var(&opts.seed, "seed", 0, "Random seed for delays and outcomes")
	f.BoolVar(&noSave, "no-save", false, "Do not store the report")
	f.BoolVar(&detail, "detail", false, "Print every task outcome")
	return cmd
}

func (a *app) runBench(ctx context.Context, out io.Writer, d benchDefaults, save, detail bool) error {
	if d.concurrency < 1 || d.concurrency > 10000 {
		return fmt.Errorf("concurrency must be in [1, 10000], got %d", d.concurrency)
	}

	var store bench.ReportStore
	if save {
		db, err := sqlite.Open(a.cfg.Store.Dir)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	policy := core.NoRetry()
	if d.retries > 0 {
		policy = core.DefaultRetryPolicy()
		policy.MaxRetries = d.retries
		policy.InitialDelay = 10 * time.Millisecond
	}
	manager := core.NewTaskManager(d.concurrency, &core.ManagerConfig{
		Logger:      a.logger,
		RetryPolicy: policy,
	})
	manager.SetName(d.name)

	runner := bench.NewRunner(manager, store, a.logger)
	report, err := runner.Run(ctx, d.name, d.benchWorkload())
	if report == nil {
		return err
	}

	printReport(out, report, detail)
	if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
		fmt.Fprintln(out, "Batch interrupted; remaining tasks were cancelled.")
		return nil
	}
	return err
}

func printReport(out io.Writer, r *bench.Report, detail bool) {
	m := r.Metrics
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", r.ID)
	fmt.Fprintf(w, "NAME\t%s\n", r.Name)
	fmt.Fprintf(w, "CREATED\t%s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "CONCURRENCY\t%d (peak %d)\n", r.Concurrency, m.PeakActive)
	fmt.Fprintf(w, "TASKS\t%d completed, %d failed, %d cancelled\n", m.Completed, m.Failed-m.Cancelled, m.Cancelled)
	fmt.Fprintf(w, "DURATION\t%s (theoretical %s, avg task %s)\n",
		m.TotalDuration.Round(time.Millisecond), m.TheoreticalTime.Round(time.Millisecond), m.AverageTaskTime.Round(time.Millisecond))
	fmt.Fprintf(w, "EFFICIENCY\t%.1f%%\n", m.Efficiency)
	fmt.Fprintf(w, "THROUGHPUT\t%.2f tasks/s\n", m.Throughput)
	w.Flush()

	if !detail || len(r.Tasks) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tSTATUS\tATTEMPTS\tDURATION\tERROR")
	for _, t := range r.Tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			t.Index, t.Name, t.Status, t.Attempts, t.Duration.Round(time.Microsecond), t.Error)
	}
	w.Flush()
}
