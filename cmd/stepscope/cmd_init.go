package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stepscope/internal/projectconfig"
	"stepscope/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var useDefaults bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a stepscope project",
		Long: `Initialize a stepscope project by scaffolding a .stepscope.yaml
configuration file, and optionally a starter questionnaire file.

By default an interactive wizard collects the settings; pass --defaults to
write the built-in defaults without prompting.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, useDefaults)
		},
	}

	cmd.Flags().BoolVarP(&useDefaults, "defaults", "y", false, "Scaffold with default settings, no prompts")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, useDefaults bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, projectconfig.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", configPath)
	}

	spec := wizard.DefaultProjectSpec()
	if !useDefaults {
		var err error
		spec, err = wizard.RunProjectWizard(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}

	content, err := wizard.GenerateProjectConfig(spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)

	if spec.WithQuestionnaire {
		questionsPath := filepath.Join(dir, "questions.yaml")
		questions, err := wizard.GenerateQuestionnaire()
		if err != nil {
			return err
		}
		if err := os.WriteFile(questionsPath, []byte(questions), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", questionsPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", questionsPath)
	}

	return nil
}
