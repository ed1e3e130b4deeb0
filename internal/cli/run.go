package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/factgraph/factgraph/internal/pipeline"
)

var (
	runOutputDir   string
	runTimeout     time.Duration
	llmProvider    string
	llmModel       string
	calibrationArt string
	groundTruth    string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <corpus.json>",
	Short: "Process one corpus into a verified knowledge graph",
	Long: `Run processes a corpus file end to end:
- Extract candidate facts per project context
- Verify each fact against its cited messages
- Build the entity-deduplicated knowledge graph
- Compute the trust score

Outputs graph.json, trust_report.json, and audit.jsonl in the output
directory.

Example:
  factgraph run corpus.json
  factgraph run corpus.json --llm-provider openai --llm-model gpt-4o-mini
  factgraph run corpus.json --ground-truth annotations.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "./factgraph-out", "output directory for run artifacts")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")

	// LLM flags
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")

	// Trust flags
	runCmd.Flags().StringVar(&calibrationArt, "calibration", "", "path to calibration artifact YAML")
	runCmd.Flags().StringVar(&groundTruth, "ground-truth", "", "path to labeled annotations JSON (evaluation mode)")
}

func runRun(cmd *cobra.Command, args []string) error {
	corpusPath := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if calibrationArt != "" {
		cfg.Trust.ArtifactPath = calibrationArt
	}
	if groundTruth != "" {
		cfg.Trust.GroundTruthPath = groundTruth
	}
	cfg.Output.Dir = runOutputDir

	if err := applyProviderEnv(cfg); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	runner := pipeline.NewRunner(cfg, logger)
	result, err := runner.Run(ctx, corpusPath)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.Verbose)
	if err := renderer.Render(result, cfg.Output.Dir); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}
