package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vincentbai/tsmcheck/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded validation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openHistory(true)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.RecentRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "no recorded runs")
				return nil
			}
			now := time.Now()
			for _, run := range runs {
				fmt.Fprintf(a.stdout, "%s  %-24s  %d sessions, %d invalid, %d failed  %s\n",
					run.ID, run.Source, run.Sessions, run.Invalid, run.Failed,
					humanize.RelTime(run.CreatedAt, now, "ago", "from now"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the results of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openHistory(true)
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := db.RunResults(args[0])
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("no results recorded for run %s", args[0])
			}
			return report.Text(a.stdout, results, time.Now())
		},
	})

	return cmd
}
