package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lex00/rds-scheduler-go/internal/schedule"
)

func newScheduleCmd(root *rootOptions) *cobra.Command {
	var (
		count int
		from  string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the next stop and start times",
		Long: `Schedule prints the next firings of the stop and start rules, in UTC as
EventBridge evaluates them.

Examples:
    rds-scheduler schedule
    rds-scheduler schedule -n 10 --from 2026-12-24T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			if from != "" {
				start, err = time.Parse(time.RFC3339, from)
				if err != nil {
					return errors.WithHint(errors.Wrap(err, "parsing --from"), "use RFC 3339, e.g. 2026-01-02T15:04:05Z")
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Instance %s (%s)\n", cfg.InstanceID, cfg.Env().String())
			for _, r := range []struct{ label, expr string }{
				{"Stop", cfg.Schedule.Stop},
				{"Start", cfg.Schedule.Start},
			} {
				expr, err := schedule.ParseExpression(r.expr)
				if err != nil {
					return err
				}
				printFirings(out, r.label, expr, start, count)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of firings to show per rule")
	cmd.Flags().StringVar(&from, "from", "", "Start time, RFC 3339 (default: now)")

	return cmd
}

func printFirings(w io.Writer, label string, expr schedule.Expression, from time.Time, n int) {
	fmt.Fprintf(w, "\n%s: %s\n", label, expr.ScheduleExpression())
	if !expr.Evaluable() {
		fmt.Fprintln(w, "  next firings cannot be computed for this expression")
		return
	}
	for _, t := range expr.Next(from, n) {
		fmt.Fprintf(w, "  %s\n", t.Format("Mon 2006-01-02 15:04 MST"))
	}
}
