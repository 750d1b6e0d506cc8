package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/victorhg/ralph/history"
)

func newHistoryCmd(opts *rootOptions, stdout io.Writer) *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show runs recorded in the history database",
		Long: `Without arguments, lists the most recent runs. With a run ID, lists that
run's iterations. The database is taken from --db, or RALPH_HISTORY_DB.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := loadConfig(cmd, opts)
				if err != nil {
					return err
				}
				dbPath = cfg.HistoryDB
			}
			if dbPath == "" {
				return errors.New("no history database: pass --db or set RALPH_HISTORY_DB")
			}

			store, err := history.Open(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				its, err := store.Iterations(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(its) == 0 {
					return fmt.Errorf("no iterations recorded for run %s", args[0])
				}
				fmt.Fprintln(w, "ITER\tSTARTED\tDURATION\tREADS\tWRITES\tCOMMIT\tDONE\tTOKENS\tERRORS")
				for _, it := range its {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%d\t%s\n",
						it.Iteration, it.StartedAt.Local().Format("15:04:05"), it.Duration,
						it.Reads, it.Writes, yesNo(it.Committed), yesNo(it.Completed),
						it.InputTokens+it.OutputTokens, strings.Join(it.Errors, "; "))
				}
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tSTARTED\tPROVIDER\tMODEL\tITERATIONS\tOUTCOME\tDIR")
			for _, r := range runs {
				outcome := r.Outcome
				if outcome == "" {
					outcome = "unfinished"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Provider, r.Model,
					r.Iterations, outcome, r.WorkingDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
