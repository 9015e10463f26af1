package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Swind/go-task-manager/internal/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List stored reports, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Store.HistoryLimit
			}
			db, err := sqlite.Open(a.cfg.Store.Dir)
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := db.ListReports(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "No reports yet. Run 'taskbench run' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED\tTASKS\tCONC\tDURATION\tEFFICIENCY")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%.1f%%\n",
					r.ID, r.Name,
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Metrics.TotalTasks, r.Concurrency,
					r.Metrics.TotalDuration.Round(time.Millisecond),
					r.Metrics.Efficiency,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum reports to list (0 = all)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var del bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored report with every task outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id %q: %w", args[0], err)
			}
			db, err := sqlite.Open(a.cfg.Store.Dir)
			if err != nil {
				return err
			}
			defer db.Close()

			if del {
				if err := db.DeleteReport(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %s\n", id)
				return nil
			}

			report, err := db.Report(cmd.Context(), id)
			if errors.Is(err, sqlite.ErrReportNotFound) {
				return fmt.Errorf("no report with id %s", id)
			}
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, true)
			return nil
		},
	}
	cmd.Flags().BoolVar(&del, "delete", false, "Delete the report instead of showing it")
	return cmd
}
