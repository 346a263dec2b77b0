package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepscope/internal/collection"
	"stepscope/internal/projectconfig"
	"stepscope/internal/questionnaire"
	"stepscope/internal/report"
)

type reportOptions struct {
	html      bool
	output    string
	questions string
}

func newReportCommand() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report <collection.yaml>",
		Short: "Render an evaluated collection as a report",
		Long: `Render an evaluated trace collection as a Markdown report: per-problem
step tables, a classification-code histogram against the expected reference
code, and notes for unevaluated responses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.html, "html", false, "Render the report as HTML instead of Markdown")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.questions, "questions", "", "Custom question battery YAML (default: built-in battery)")

	return cmd
}

func runReport(cmd *cobra.Command, path string, opts *reportOptions) error {
	cfg, err := projectconfig.Load(".")
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("html") && cfg.Report.HTML != nil {
		opts.html = *cfg.Report.HTML
	}

	battery := questionnaire.Default()
	if opts.questions != "" {
		battery, err = questionnaire.Load(opts.questions)
		if err != nil {
			return err
		}
	}

	c, err := collection.Load(cmd.Context(), path)
	if err != nil {
		return err
	}

	rendered := report.Markdown(c, battery)
	if opts.html {
		rendered, err = report.HTML(rendered)
		if err != nil {
			return err
		}
	}

	if opts.output == "" {
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	}
	if err := os.WriteFile(opts.output, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report saved to: %s\n", opts.output)
	return nil
}
