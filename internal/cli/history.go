package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past batch runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			fmt.Printf("%-36s  %-8s  %-18s  %-24s  %s\n", "ID", "STEP", "STARTED", "SUCCESS/SKIP/FAIL", "DURATION")
			for _, run := range runs {
				fmt.Printf("%-36s  %-8s  %-18s  %-24s  %s\n",
					run.ID, run.Step,
					humanize.Time(run.StartedAt),
					fmt.Sprintf("%d/%d/%d", run.Success, run.Skipped, run.Failed),
					run.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

// openStore opens the study's run history database and applies migrations.
func openStore() (*store.SQLiteStore, error) {
	study, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(study.DBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(context.Background()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
