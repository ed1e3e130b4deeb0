package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/extract"
	"github.com/factgraph/factgraph/internal/graph"
	"github.com/factgraph/factgraph/internal/model"
	"github.com/factgraph/factgraph/internal/verify"
)

// Pipeline runs one project context through extraction, verification, and
// graph construction.
type Pipeline struct {
	extractor *extract.Extractor
	verifier  *verify.Verifier
	builder   *graph.Builder
	workers   int
	logger    *zap.Logger
}

// NewPipeline wires the per-context stages. workers bounds concurrent fact
// verifications within a context.
func NewPipeline(extractor *extract.Extractor, verifier *verify.Verifier, builder *graph.Builder, workers int, logger *zap.Logger) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		verifier:  verifier,
		builder:   builder,
		workers:   workers,
		logger:    logger,
	}
}

// ContextResult is the outcome of processing one context. Facts holds every
// extracted fact with its final status, in sequence order.
type ContextResult struct {
	ContextID string
	ProjectID string
	Facts     []*model.Fact
	Phase     extract.PhaseInference
}

// ProcessContext runs the full stage sequence for one context. Verification
// of the context's facts runs concurrently; graph insertion afterwards is
// sequential in fact order, so earlier facts always enter the graph before
// later ones.
func (p *Pipeline) ProcessContext(ctx context.Context, pc model.ProjectContext, store evidence.Store) (*ContextResult, error) {
	started := time.Now()
	p.logger.Info("context_started",
		zap.String("correlation_id", pc.ID),
		zap.String("project", pc.Name))

	extracted, err := p.extractor.Extract(ctx, pc, store)
	if err != nil {
		return nil, fmt.Errorf("extract context %s: %w", pc.ID, err)
	}

	facts := make([]*model.Fact, len(extracted.Facts))
	for i := range extracted.Facts {
		facts[i] = &extracted.Facts[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, f := range facts {
		f := f
		g.Go(func() error {
			_, err := p.verifier.Verify(gctx, f)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify context %s: %w", pc.ID, err)
	}

	projectID, err := p.builder.EnsureProject(ctx, pc, p.contextStart(pc, store))
	if err != nil {
		return nil, fmt.Errorf("project node for context %s: %w", pc.ID, err)
	}
	p.builder.Arena().RecordPhase(projectID, extracted.Phase.Phase, extracted.Phase.Reasoning)

	verified := 0
	for _, f := range facts {
		if f.Status != model.StatusVerified {
			continue
		}
		if err := p.builder.Consume(ctx, f, projectID); err != nil {
			return nil, fmt.Errorf("graph insert fact %s: %w", f.ID, err)
		}
		verified++
	}

	p.logger.Info("context_completed",
		zap.String("correlation_id", pc.ID),
		zap.Int("facts", len(facts)),
		zap.Int("verified", verified),
		zap.Duration("elapsed", time.Since(started)))

	return &ContextResult{
		ContextID: pc.ID,
		ProjectID: projectID,
		Facts:     facts,
		Phase:     extracted.Phase,
	}, nil
}

// contextStart is the earliest message timestamp in the context, used as the
// project node's first-seen time.
func (p *Pipeline) contextStart(pc model.ProjectContext, store evidence.Store) time.Time {
	var earliest time.Time
	for _, id := range pc.MessageIDs {
		if m, ok := store.Get(id); ok {
			if earliest.IsZero() || m.Timestamp.Before(earliest) {
				earliest = m.Timestamp
			}
		}
	}
	if earliest.IsZero() {
		earliest = time.Now().UTC()
	}
	return earliest
}
