package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/megpipe/pkg/model"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-unit outcomes of one batch run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := st.ListOutcomes(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("list outcomes: %w", err)
			}

			fmt.Printf("Run %s: step %s, started %s, took %s\n\n",
				run.ID, run.Step, humanize.Time(run.StartedAt), run.Duration.Round(time.Millisecond))

			fmt.Printf("%-20s  %-8s  %-14s  %s\n", "UNIT", "STATUS", "ERROR", "DETAIL")
			for _, rec := range records {
				if failedOnly && rec.Status != model.StatusFailed {
					continue
				}
				detail := rec.ErrorMsg
				if rec.Status != model.StatusFailed && len(rec.Outputs) > 0 {
					detail = rec.Outputs[0].Path
				}
				fmt.Printf("%-20s  %-8s  %-14s  %s\n", rec.Unit.Key(), rec.Status, rec.ErrorKind, detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed units")
	return cmd
}
