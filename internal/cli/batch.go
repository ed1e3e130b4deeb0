package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/factgraph/factgraph/internal/pipeline"
	"github.com/factgraph/factgraph/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Process multiple corpora from a list file in parallel",
	Long: `Batch processes multiple corpus files concurrently:
- Read corpus paths from the input file (one per line)
- Process corpora in parallel with a configurable worker count
- Each run uses concurrent per-context processing
- Write per-corpus artifacts into the output directory

Example:
  factgraph batch corpora.txt
  factgraph batch corpora.txt --concurrency 4 --output-dir ./runs`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent corpus workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./factgraph-runs", "output directory for run artifacts")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")

	// LLM flags shared with run
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	batchCmd.Flags().StringVar(&calibrationArt, "calibration", "", "path to calibration artifact YAML")
}

func runBatch(cmd *cobra.Command, args []string) error {
	listPath := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
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
	cfg.Output.Dir = outputDir

	if err := applyProviderEnv(cfg); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	paths, err := worker.ReadPathsFromFile(listPath)
	if err != nil {
		return fmt.Errorf("read corpus list: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Processing %d corpora with %d workers\n\n", len(paths), concurrency)

	runner := pipeline.NewRunner(cfg, logger)
	processor := worker.NewBatchProcessor(runner, concurrency)
	results := processor.ProcessPaths(ctx, paths)

	successCount := 0
	failureCount := 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}
		successCount++

		dir := filepath.Join(outputDir, corpusSlug(result.Path))
		renderer := pipeline.NewRenderer(cfg.Output.Verbose)
		if err := renderer.Render(result.Run, dir); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write artifacts: %v\n", result.Path, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s (trust score: %.3f)\n", result.Path, result.Run.Report.OverallScore)
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d total, %d succeeded, %d failed\n",
		len(results), successCount, failureCount)
	fmt.Fprintf(os.Stderr, "Output: %s\n", outputDir)
	return nil
}

// corpusSlug derives a directory name from a corpus path.
func corpusSlug(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
	)
	slug := replacer.Replace(base)
	if len(slug) > 100 {
		slug = slug[:100]
	}
	return slug
}
