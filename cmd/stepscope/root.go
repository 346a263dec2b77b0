package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stepscope",
		Short: "Stepscope - step-level faithfulness evaluation for reasoning traces",
		Long: `Stepscope evaluates whether each step of a model-produced reasoning trace
faithfully contributed to the final answer.

It dispatches a fixed battery of yes/no questions about every step to an
evaluator model, parses the tagged answers into classification codes, and
writes an evaluated copy of the input collection.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newEvalCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newInitCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
