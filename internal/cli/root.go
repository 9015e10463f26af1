// Package cli implements the taskbench command-line interface using Cobra.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/config"
	"github.com/Swind/go-task-manager/observability/charmlog"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand, filled in before RunE.
type app struct {
	version    string
	configPath string
	logLevel   string

	cfg    config.Config
	logger core.Logger
}

// NewRootCommand builds the taskbench command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "taskbench",
		Short: "taskbench: measure bounded-concurrency batch execution",
		Long: `taskbench runs synthetic workloads through a bounded-concurrency
task manager and reports how close each batch came to perfect packing.

Reports are stored in SQLite under $TASKBENCH_HOME (default ~/.taskbench).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.Path(), "Path to config.toml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (overrides config)")

	root.AddCommand(
		newRunCmd(a),
		newHistoryCmd(a),
		newShowCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = charmlog.NewFromConfig(logOut, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Timestamps)
	return nil
}

// workload converts the configured bench defaults.
func (a *app) workload() benchDefaults {
	b := a.cfg.Bench
	return benchDefaults{
		name:        b.Name,
		concurrency: b.Concurrency,
		retries:     b.Retries,
		tasks:       b.Tasks,
		minDelay:    b.MinDelay.Duration,
		maxDelay:    b.MaxDelay.Duration,
		failureRate: b.FailureRate,
		panicRate:   b.PanicRate,
		seed:        b.Seed,
	}
}
