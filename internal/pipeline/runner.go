package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/factgraph/factgraph/internal/audit"
	"github.com/factgraph/factgraph/internal/cache"
	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/extract"
	"github.com/factgraph/factgraph/internal/graph"
	"github.com/factgraph/factgraph/internal/llm"
	"github.com/factgraph/factgraph/internal/model"
	"github.com/factgraph/factgraph/internal/ratelimit"
	"github.com/factgraph/factgraph/internal/retry"
	"github.com/factgraph/factgraph/internal/score"
	"github.com/factgraph/factgraph/internal/verify"
)

// ContextError records a context that failed without stopping the run.
type ContextError struct {
	ContextID string
	Err       error
}

// RunResult is the complete outcome of processing one corpus.
type RunResult struct {
	RunID      string
	CorpusPath string
	Report     model.TrustReport
	Graph      model.GraphDocument
	Facts      []*model.Fact
	Audit      *audit.Log
	Failed     []ContextError
	Elapsed    time.Duration
}

// Runner owns the cross-context orchestration for a corpus: one shared
// provider, rate limiter, cache, and graph arena; a bounded set of contexts
// in flight. A context failure is recorded, never fatal: the run always
// yields a report and an audit log.
type Runner struct {
	cfg    *model.Config
	logger *zap.Logger
}

// NewRunner creates a runner. A nil logger disables event logging.
func NewRunner(cfg *model.Config, logger *zap.Logger) *Runner {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run processes one corpus file end to end.
func (r *Runner) Run(ctx context.Context, corpusPath string) (*RunResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))

	corpus, err := evidence.LoadCorpus(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(r.cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("judgment source: %w", err)
	}

	cal := score.DefaultCalibration()
	if r.cfg.Trust.ArtifactPath != "" {
		cal, err = score.LoadCalibration(r.cfg.Trust.ArtifactPath)
		if err != nil {
			return nil, err
		}
	}
	var gt *score.GroundTruth
	if r.cfg.Trust.GroundTruthPath != "" {
		gt, err = score.LoadGroundTruth(r.cfg.Trust.GroundTruthPath)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("run_started",
		zap.String("corpus", corpusPath),
		zap.Int("messages", corpus.Store.Len()),
		zap.Int("contexts", len(corpus.Contexts)),
		zap.String("provider", provider.Name()),
		zap.String("calibration", cal.Version()))

	limiter := ratelimit.New(r.cfg.RateLimit.CallsPerMinute, r.cfg.RateLimit.Burst)
	auditLog := audit.NewLog()
	cacheDir := filepath.Join(r.cfg.Output.Dir, ".factgraph-cache")
	verdicts := cache.NewLayeredCache(time.Hour, filepath.Join(cacheDir, "verdicts"), 30*24*time.Hour)
	vectors := cache.NewLayeredCache(time.Hour, filepath.Join(cacheDir, "embeddings"), 7*24*time.Hour)

	extractor := extract.NewExtractor(provider, limiter, auditLog, r.cfg.Extract, logger)
	policy := retry.Policy{
		MaxAttempts: r.cfg.Verify.MaxAttempts,
		BaseDelay:   r.cfg.Verify.BackoffBase,
		CallTimeout: r.cfg.Verify.CallTimeout,
	}
	verifier := verify.NewVerifier(corpus.Store, provider, limiter, policy, verdicts, auditLog, logger)

	arena := graph.NewArena()
	sim := graph.NewEmbeddingSimilarity(provider, vectors)
	deduper := graph.NewDeduper(sim, r.cfg.Dedup.SimilarityThreshold, logger)
	builder := graph.NewBuilder(arena, deduper, corpus.Store, logger)
	pipe := NewPipeline(extractor, verifier, builder, r.cfg.Verify.Workers, logger)

	var (
		mu     sync.Mutex
		facts  []*model.Fact
		failed []ContextError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Concurrency.ContextWorkers, 1))
	for _, pc := range corpus.Contexts {
		pc := pc
		g.Go(func() error {
			res, err := pipe.ProcessContext(gctx, pc, corpus.Store)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("context_failed",
					zap.String("correlation_id", pc.ID),
					zap.Error(err))
				failed = append(failed, ContextError{ContextID: pc.ID, Err: err})
				return nil
			}
			facts = append(facts, res.Facts...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stable fact order across runs regardless of context scheduling.
	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].ContextID != facts[j].ContextID {
			return facts[i].ContextID < facts[j].ContextID
		}
		return facts[i].Seq < facts[j].Seq
	})

	if n := arena.CheckDangling(); n > 0 {
		logger.Warn("dangling_edges", zap.Int("count", n))
	}
	for _, w := range arena.Warnings() {
		auditLog.IntegrityWarning(w)
	}

	doc := arena.Document()
	report := score.NewScorer(cal).Calculate(facts, doc, corpus.Store, gt)

	logger.Info("run_completed",
		zap.Float64("overall_score", report.OverallScore),
		zap.Int("total_facts", report.TotalFacts),
		zap.Int("verified", report.VerifiedFactCount),
		zap.Int("rejected", report.RejectedFactCount),
		zap.Int("failed_contexts", len(failed)),
		zap.Duration("elapsed", time.Since(started)))

	return &RunResult{
		RunID:      runID,
		CorpusPath: corpusPath,
		Report:     report,
		Graph:      doc,
		Facts:      facts,
		Audit:      auditLog,
		Failed:     failed,
		Elapsed:    time.Since(started),
	}, nil
}
