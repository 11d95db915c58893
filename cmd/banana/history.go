package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bamsammich/banana/internal/ui"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history [task]",
		Short: "Show past runs, newest first",
		Long: `Show past runs, newest first. With --run, show one run in full with
every file that failed. The ID may be abbreviated to any unique prefix.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			if runID != "" && name != "" {
				return errors.New("--run and a task name are mutually exclusive")
			}
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			if runID != "" {
				r, err := hist.Get(cmd.Context(), runID)
				if err != nil {
					return err
				}
				ui.WriteRun(a.stdout, r)
				return nil
			}

			runs, err := hist.List(cmd.Context(), name, limit)
			if err != nil {
				return err
			}
			ui.WriteHistory(a.stdout, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the run with this ID (or unique ID prefix)")
	return cmd
}

func newLogCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show runs that ended with errors and what failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			runs, err := hist.Failures(cmd.Context(), limit)
			if err != nil {
				return err
			}
			ui.WriteFailureLog(a.stdout, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show (0 for all)")
	return cmd
}
