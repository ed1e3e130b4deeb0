package worker

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/factgraph/factgraph/internal/pipeline"
)

// CorpusRunner runs one corpus file end to end.
type CorpusRunner interface {
	Run(ctx context.Context, corpusPath string) (*pipeline.RunResult, error)
}

// CorpusJob processes one corpus through the runner.
type CorpusJob struct {
	Path   string
	Runner CorpusRunner
}

// Execute runs the corpus.
func (j *CorpusJob) Execute(ctx context.Context) Result {
	result, err := j.Runner.Run(ctx, j.Path)
	return &CorpusResult{Path: j.Path, Run: result, Error: err}
}

// CorpusResult is the outcome of one corpus job.
type CorpusResult struct {
	Path  string
	Run   *pipeline.RunResult
	Error error
}

// GetError returns the job error.
func (r *CorpusResult) GetError() error {
	return r.Error
}

// BatchProcessor runs multiple corpora concurrently on a worker pool.
type BatchProcessor struct {
	runner      CorpusRunner
	concurrency int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(runner CorpusRunner, concurrency int) *BatchProcessor {
	return &BatchProcessor{runner: runner, concurrency: concurrency}
}

// ProcessPaths runs each corpus path and returns results in completion
// order.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*CorpusResult {
	if len(paths) == 0 {
		return []*CorpusResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()
	for _, path := range paths {
		pool.Submit(&CorpusJob{Path: path, Runner: b.runner})
	}

	results := pool.Wait()
	out := make([]*CorpusResult, len(results))
	for i, r := range results {
		out[i] = r.(*CorpusResult)
	}
	return out
}

// ReadPathsFromFile reads corpus paths from a list file, one per line.
// Blank lines and # comments are skipped; duplicates are dropped.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}
