package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stepscope/internal/collection"
	"stepscope/internal/validation"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <collection.yaml>",
		Short: "Validate a trace collection file",
		Long: `Validate a trace collection against the embedded JSON Schema plus the
semantic rules the schema cannot express (resolved response shapes,
well-formed classification codes).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	out := cmd.OutOrStdout()

	data, err := collection.ReadRaw(cmd.Context(), path)
	if err != nil {
		return err
	}

	findings := validation.ValidateCollectionBytes(data)

	// Semantic checks need the resolved union; a collection the schema
	// rejects may still parse, and its findings are still useful.
	if c, parseErr := collection.Parse(data); parseErr != nil {
		findings = append(findings, parseErr.Error())
	} else {
		findings = append(findings, validation.SemanticFindings(c)...)
	}

	if len(findings) == 0 {
		fmt.Fprintf(out, "%s is valid.\n", path)
		return nil
	}

	fmt.Fprintf(out, "%s has %d finding(s):\n", path, len(findings))
	for _, finding := range findings {
		fmt.Fprintf(out, "  - %s\n", finding)
	}
	return fmt.Errorf("collection is invalid")
}
