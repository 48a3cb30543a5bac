package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/me/megpipe/internal/archive"
	"github.com/me/megpipe/internal/config"
	"github.com/me/megpipe/internal/pipeline"
	"github.com/me/megpipe/internal/steps"
	"github.com/me/megpipe/internal/store"
	"github.com/me/megpipe/internal/toolrun"
	"github.com/me/megpipe/pkg/model"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		subjects   []string
		jobs       int
		sequential bool
		dryRun     bool
		hashConfig bool
		noStore    bool
	)

	cmd := &cobra.Command{
		Use:   "run <step>",
		Short: "Run one processing step across the subject roster",
		Long: `Runs the named step for every subject (and acquisition run, for
per-run steps) on the roster. Units whose outputs are newer than all of
their inputs are skipped; a failing unit is reported and the rest of
the batch continues.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: steps.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			stepName := args[0]

			study, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			tools := toolrun.NewInvoker(logger)
			def, err := steps.Lookup(tools, stepName)
			if err != nil {
				return err
			}
			if stepName == "ica" && !study.UseICA {
				return fmt.Errorf("step ica is disabled for this study (use_ica: false)")
			}

			roster := study.Subjects
			if len(subjects) > 0 {
				roster = subjects
			}
			var sessions []string
			if def.PerRun {
				sessions = study.Runs
			}

			if jobs == 0 {
				jobs = study.Jobs
			}
			if def.JobsDivisor > 1 {
				jobs /= def.JobsDivisor
			}
			if jobs < 1 {
				jobs = 1
			}
			var backend pipeline.Backend = pipeline.Pool{Workers: jobs}
			if sequential || jobs == 1 {
				backend = pipeline.Sequential{}
			}

			batch := pipeline.NewBatch(pipeline.BatchConfig{
				Study:      study,
				Backend:    backend,
				Logger:     logger,
				HashConfig: hashConfig,
			})

			if dryRun {
				return printPlan(batch, def.Step, roster, sessions, study.ExcludeSubjects)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := batch.RunStep(ctx, def.Step, roster, sessions, study.ExcludeSubjects)
			if err != nil {
				return err
			}

			runID := uuid.New().String()
			if !noStore {
				if err := persistRun(ctx, study, runID, summary); err != nil {
					logger.Error("run not persisted", "error", err)
				}
			}
			if err := archiveRun(ctx, study, runID, summary); err != nil {
				logger.Error("run not archived", "error", err)
			}

			printSummary(runID, summary)
			if !summary.OK() {
				return fmt.Errorf("%d of %d units failed", summary.Counts[model.StatusFailed], len(summary.Records))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&subjects, "subjects", nil, "Restrict the batch to these subjects (default: full roster)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Worker pool size (default: study jobs setting)")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Run units one at a time")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without running anything")
	cmd.Flags().BoolVar(&hashConfig, "hash-config", false, "Also rerun units whose recorded config hash changed")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record this run in the history database")

	return cmd
}

func printPlan(batch *pipeline.Batch, step pipeline.Step, roster, sessions, exclusions []string) error {
	entries, err := batch.Plan(step, roster, sessions, exclusions)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s  %-8s  %s\n", "UNIT", "VERDICT", "OUTPUTS")
	for _, e := range entries {
		first := ""
		if len(e.Outputs) > 0 {
			first = e.Outputs[0].Path
		}
		fmt.Printf("%-20s  %-8s  %s\n", e.Unit.Key(), e.Verdict, first)
	}
	return nil
}

func persistRun(ctx context.Context, study *config.Study, runID string, summary model.RunSummary) error {
	st, err := store.NewSQLiteStore(study.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run := &store.Run{
		ID:        runID,
		Step:      summary.Step,
		Study:     study.StudyName,
		StartedAt: summary.StartedAt,
		Duration:  summary.Duration,
		Success:   summary.Counts[model.StatusSuccess],
		Skipped:   summary.Counts[model.StatusSkipped],
		Failed:    summary.Counts[model.StatusFailed],
	}
	return st.CreateRun(ctx, run, summary.Records)
}

func archiveRun(ctx context.Context, study *config.Study, runID string, summary model.RunSummary) error {
	var sink archive.Sink
	switch {
	case study.Archive.S3Bucket != "":
		s3sink, err := archive.NewS3Sink(ctx, study.Archive.S3Bucket, study.Archive.S3Prefix, logger)
		if err != nil {
			return err
		}
		sink = s3sink
	case study.Archive.Dir != "":
		sink = archive.NewDirSink(study.Archive.Dir, logger)
	default:
		return nil
	}
	return archive.WriteSummary(ctx, sink, runID, summary)
}

func printSummary(runID string, summary model.RunSummary) {
	fmt.Printf("\nStep %s finished %s: %d succeeded, %d skipped, %d failed (run %s, took %s)\n",
		summary.Step,
		humanize.Time(summary.StartedAt.Add(summary.Duration)),
		summary.Counts[model.StatusSuccess],
		summary.Counts[model.StatusSkipped],
		summary.Counts[model.StatusFailed],
		runID,
		summary.Duration.Round(time.Millisecond))

	for _, rec := range summary.Failed() {
		fmt.Printf("  FAILED %-20s  %s: %s\n", rec.Unit.Key(), rec.ErrorKind, rec.ErrorMsg)
	}
}
