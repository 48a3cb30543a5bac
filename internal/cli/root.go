// Package cli implements the megpipe command line interface.
package cli

import (
	"log/slog"

	"github.com/me/megpipe/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the megpipe CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "megpipe",
		Short: "megpipe — batch pipeline runner for M/EEG studies",
		Long: `megpipe runs M/EEG processing steps (filter, events, epochs, ica,
forward) across a study's subject roster, skipping work whose outputs
are already up to date and isolating per-subject failures.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(logging.Options{
				Level:  logging.ParseLevel(flagLogLevel),
				Format: flagLogFormat,
			})
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "study.yaml", "Study configuration file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Shorthand for --log-level=debug")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newStepsCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newServeCmd(),
	)

	return root
}
