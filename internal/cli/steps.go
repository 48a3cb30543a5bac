package cli

import (
	"fmt"

	"github.com/me/megpipe/internal/steps"
	"github.com/me/megpipe/internal/toolrun"
	"github.com/spf13/cobra"
)

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the processing steps in pipeline order",
		RunE: func(cmd *cobra.Command, args []string) error {
			tools := toolrun.NewInvoker(logger)

			fmt.Printf("%-10s  %-12s  %s\n", "STEP", "GRANULARITY", "NOTES")
			for _, def := range steps.Registry(tools) {
				granularity := "subject"
				if def.PerRun {
					granularity = "subject/run"
				}
				notes := ""
				if def.JobsDivisor > 1 {
					notes = fmt.Sprintf("runs with jobs/%d workers", def.JobsDivisor)
				}
				fmt.Printf("%-10s  %-12s  %s\n", def.Step.Name(), granularity, notes)
			}
			return nil
		},
	}
}
