package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stepscope/internal/batch"
	"stepscope/internal/cache"
	"stepscope/internal/collection"
	"stepscope/internal/faithfulness"
	"stepscope/internal/modelclient"
	"stepscope/internal/projectconfig"
	"stepscope/internal/questionnaire"
	"stepscope/internal/spinner"
	"stepscope/internal/utils"
)

type evalOptions struct {
	model             string
	maxRetries        int
	maxParallel       int
	tokensPerInterval int
	criticalSteps     string
	questions         string
	output            string
	verbose           bool
	dryRun            bool
	enableCache       bool
	disableCache      bool
	cacheDir          string
	modelParams       []string
}

func newEvalCommand() *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <collection.yaml>",
		Short: "Evaluate step faithfulness for a trace collection",
		Long: `Evaluate the faithfulness of each reasoning step in a splitted trace
collection.

Every step (optionally restricted to a critical-steps file) is dispatched to
the evaluator model with the full trace as context. The evaluated collection
is written next to the input, with the "_splitted" filename segment replaced
by "_faithfulness_eval".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", projectconfig.DefaultModel, "Evaluator model id")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", projectconfig.DefaultMaxRetries, "Maximum retries for failed requests")
	cmd.Flags().IntVar(&opts.maxParallel, "max-parallel", projectconfig.DefaultMaxParallel, "Maximum number of parallel requests")
	cmd.Flags().IntVar(&opts.tokensPerInterval, "tokens-per-interval", projectconfig.DefaultTokensPerInterval, "Estimated token budget per rate-limit interval")
	cmd.Flags().StringVar(&opts.criticalSteps, "critical-steps", "", "Collection file naming the critical steps to evaluate; everything else is skipped")
	cmd.Flags().StringVar(&opts.questions, "questions", "", "Custom question battery YAML (default: built-in battery)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default: derived from the input path)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output with prompt echoes")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Build the batch and print a summary without dispatching")
	cmd.Flags().BoolVar(&opts.enableCache, "cache", false, "Enable response caching")
	cmd.Flags().BoolVar(&opts.disableCache, "no-cache", false, "Disable response caching")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory for evaluator responses")
	cmd.Flags().StringArrayVar(&opts.modelParams, "model-option", nil, "Backend option as key=value (can be repeated)")

	return cmd
}

// applyProjectConfig fills in every flag the user did not set explicitly
// from the project config. Explicit flags always win.
func applyProjectConfig(cmd *cobra.Command, opts *evalOptions, cfg *projectconfig.ProjectConfig) {
	if !cmd.Flags().Changed("model") {
		opts.model = cfg.Eval.Model
	}
	if !cmd.Flags().Changed("max-retries") {
		opts.maxRetries = cfg.Eval.MaxRetries
	}
	if !cmd.Flags().Changed("max-parallel") {
		opts.maxParallel = cfg.Eval.MaxParallel
	}
	if !cmd.Flags().Changed("tokens-per-interval") {
		opts.tokensPerInterval = cfg.Eval.TokensPerInterval
	}
	if !cmd.Flags().Changed("verbose") && cfg.Eval.Verbose != nil {
		opts.verbose = *cfg.Eval.Verbose
	}
	if !cmd.Flags().Changed("cache") && !cmd.Flags().Changed("no-cache") && cfg.Cache.Enabled != nil {
		opts.enableCache = *cfg.Cache.Enabled
	}
	if !cmd.Flags().Changed("cache-dir") {
		opts.cacheDir = cfg.Cache.Dir
	}
}

func runEval(cmd *cobra.Command, inputPath string, opts *evalOptions) error {
	ctx := cmd.Context()

	cfg, err := projectconfig.Load(".")
	if err != nil {
		return err
	}
	applyProjectConfig(cmd, opts, cfg)

	debug, _ := cmd.Flags().GetBool("debug")
	closeLog, err := utils.InitLogging(cfg.LogDir, "eval", debug || opts.verbose)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	runID := uuid.NewString()
	slog.SetDefault(slog.Default().With("run_id", runID))
	slog.Info("starting faithfulness evaluation", "input", inputPath, "model", opts.model)

	battery := questionnaire.Default()
	if opts.questions != "" {
		battery, err = questionnaire.Load(opts.questions)
		if err != nil {
			return err
		}
	}

	var selector faithfulness.Selector
	if opts.criticalSteps != "" {
		selector, err = faithfulness.LoadSelector(ctx, opts.criticalSteps)
		if err != nil {
			return err
		}
		slog.Info("loaded critical-steps selector", "problems", len(selector))
	}

	coll, err := collection.Load(ctx, inputPath)
	if err != nil {
		return err
	}

	if opts.dryRun {
		items, err := faithfulness.BuildBatch(coll, faithfulness.NewPromptBuilder(battery), selector)
		if err != nil {
			return err
		}
		printDryRunSummary(cmd.OutOrStdout(), coll, items)
		return nil
	}

	// An unsupported model id fails here, before anything is dispatched.
	client, err := modelclient.New(ctx, opts.model, parseModelParams(opts.modelParams))
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	processorOpts := []batch.Option{
		batch.WithMaxParallel(opts.maxParallel),
		batch.WithMaxRetries(opts.maxRetries),
		batch.WithGeneration(projectconfig.DefaultMaxNewTokens, projectconfig.DefaultTemperature),
		batch.WithLimiter(batch.NewWindowLimiter(
			opts.maxParallel,
			opts.tokensPerInterval,
			time.Duration(cfg.Eval.RateIntervalSeconds)*time.Second,
		)),
	}
	if opts.enableCache && !opts.disableCache {
		responseCache, err := cache.New(opts.cacheDir)
		if err != nil {
			return err
		}
		processorOpts = append(processorOpts, batch.WithCache(responseCache))
	}
	processor := batch.NewProcessor(client, faithfulness.ProcessFunc(battery), processorOpts...)

	var sp *spinner.Spinner
	if !opts.verbose {
		sp = spinner.Start(os.Stderr, fmt.Sprintf("evaluating steps with %s", opts.model))
	}
	result, skips, err := faithfulness.Evaluate(ctx, coll, battery, selector, processor, opts.model)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return err
	}

	outputPath := opts.output
	if outputPath == "" {
		outputPath = utils.DeriveOutputPath(inputPath)
	}
	if err := collection.Save(ctx, result, outputPath); err != nil {
		return err
	}

	printEvalSummary(cmd.OutOrStdout(), result, battery, skips)
	fmt.Fprintf(cmd.OutOrStdout(), "Results saved to: %s\n", outputPath)

	if len(skips) > 0 {
		return &SkippedStepsError{Count: len(skips)}
	}
	return nil
}

// parseModelParams turns repeated key=value flags into the backend params
// map. Values without an equals sign become empty-string entries.
func parseModelParams(pairs []string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		params[key] = value
	}
	return params
}
