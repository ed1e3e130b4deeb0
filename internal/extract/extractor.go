package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/factgraph/factgraph/internal/audit"
	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/llm"
	"github.com/factgraph/factgraph/internal/model"
	"github.com/factgraph/factgraph/internal/ratelimit"
)

// ErrStructuralFailure means the judgment source never produced output
// passing structural validation within the retry budget; the context yields
// zero facts.
var ErrStructuralFailure = errors.New("extraction output failed structural validation")

// Extractor turns a project context into candidate facts.
type Extractor struct {
	provider   llm.Provider
	limiter    *ratelimit.Limiter
	auditLog   *audit.Log
	logger     *zap.Logger
	examples   []Example
	maxRetries int
	maxMsgs    int
}

// NewExtractor creates an extractor. A nil logger disables event logging.
func NewExtractor(provider llm.Provider, limiter *ratelimit.Limiter, auditLog *audit.Log, cfg model.ExtractConfig, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := cfg.MaxSchemaRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	maxMsgs := cfg.MaxContextMessages
	if maxMsgs <= 0 {
		maxMsgs = 15
	}
	return &Extractor{
		provider:   provider,
		limiter:    limiter,
		auditLog:   auditLog,
		logger:     logger,
		examples:   DefaultExamples(),
		maxRetries: maxRetries,
		maxMsgs:    maxMsgs,
	}
}

// PhaseInference is the extractor's judgment of which lifecycle phase the
// project is in, with its reasoning. Phase is empty when the source did not
// commit to one.
type PhaseInference struct {
	Phase     string
	Reasoning string
}

// Result is the output of extracting one context.
type Result struct {
	Facts []model.Fact
	Phase PhaseInference
}

// Extract produces candidate facts for one context. Facts are returned in
// order of appearance in the source messages, each in status pending.
// On structural failure after the retry budget, it returns
// ErrStructuralFailure and the context yields nothing.
func (e *Extractor) Extract(ctx context.Context, pc model.ProjectContext, store evidence.Store) (*Result, error) {
	msgs, err := evidence.Resolve(store, pc.MessageIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve context %s: %w", pc.ID, err)
	}
	if len(msgs) > e.maxMsgs {
		msgs = msgs[:e.maxMsgs]
	}

	e.logger.Info("extraction_started",
		zap.String("correlation_id", pc.ID),
		zap.Int("messages", len(msgs)))

	base := buildExtractionPrompt(pc, msgs, e.examples)
	prompt := base

	var batch *candidateBatch
	var lastStructuralErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
			System: "You extract structured project facts from correspondence. Every fact must cite message ids as evidence.",
			Prompt: prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("extraction call for context %s: %w", pc.ID, err)
		}

		batch, lastStructuralErr = decodeBatch(resp.Text)
		if lastStructuralErr == nil {
			break
		}

		e.logger.Warn("extraction_schema_retry",
			zap.String("correlation_id", pc.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastStructuralErr))
		prompt = buildCorrectivePrompt(base, lastStructuralErr)
	}

	if lastStructuralErr != nil {
		if e.auditLog != nil {
			e.auditLog.StructuralFailure(pc.ID, lastStructuralErr.Error(), e.maxRetries)
		}
		return nil, fmt.Errorf("context %s: %w: %v", pc.ID, ErrStructuralFailure, lastStructuralErr)
	}

	facts := e.toFacts(pc, msgs, batch)

	phase := PhaseInference{Phase: batch.ProjectPhase, Reasoning: batch.PhaseReasoning}
	if phase.Phase == "unknown" {
		phase.Phase = ""
	}

	e.logger.Info("extraction_completed",
		zap.String("correlation_id", pc.ID),
		zap.Int("facts", len(facts)),
		zap.String("phase", phase.Phase))
	return &Result{Facts: facts, Phase: phase}, nil
}

// toFacts validates candidates against the context and converts survivors.
// Candidates citing unknown message ids are contract violations: they are
// never emitted and the violation is audited.
func (e *Extractor) toFacts(pc model.ProjectContext, msgs []model.Message, batch *candidateBatch) []model.Fact {
	inContext := make(map[string]int, len(msgs)) // id to position
	bodies := make(map[string]string, len(msgs))
	for i, m := range msgs {
		inContext[m.ID] = i
		bodies[m.ID] = m.Body
	}

	type ordered struct {
		fact model.Fact
		pos  int // earliest cited message position
		emit int // LLM emission order, tiebreaker
	}
	var out []ordered

	for i, c := range batch.Facts {
		if !model.ValidClaimType(model.ClaimType(c.ClaimType)) {
			// Schema already enforces the enum; belt-and-braces for
			// repaired output.
			continue
		}

		valid := true
		pos := len(msgs)
		for _, id := range c.Evidence {
			p, ok := inContext[id]
			if !ok {
				valid = false
				break
			}
			if p < pos {
				pos = p
			}
		}
		if !valid || len(c.Evidence) == 0 {
			e.logger.Warn("extraction_candidate_dropped",
				zap.String("correlation_id", pc.ID),
				zap.String("text", c.Text),
				zap.Strings("evidence", c.Evidence))
			if e.auditLog != nil {
				e.auditLog.Append(audit.Entry{
					Kind:      audit.KindRejected,
					ContextID: pc.ID,
					Claim:     c.Text,
					Reason:    "extraction validation: evidence cites message id outside the context",
					Evidence:  c.Evidence,
				})
			}
			continue
		}

		citedBodies := make([]string, 0, len(c.Evidence))
		for _, id := range c.Evidence {
			citedBodies = append(citedBodies, bodies[id])
		}

		fact := model.Fact{
			ID:                   uuid.NewString(),
			ContextID:            pc.ID,
			ClaimType:            model.ClaimType(c.ClaimType),
			Text:                 c.Text,
			Evidence:             append([]string(nil), c.Evidence...),
			ExtractionConfidence: DampenConfidence(c.Confidence, citedBodies),
			Status:               model.StatusPending,
			Attributes:           c.Attributes,
		}
		for _, q := range c.Quotes {
			fact.ReasoningTrace = append(fact.ReasoningTrace, model.ReasoningStep{
				MessageID: q.MessageID,
				Quote:     q.Quote,
				Inference: "cited at extraction",
			})
		}
		for _, h := range c.Hops {
			fact.Hops = append(fact.Hops, model.Hop{Statement: h.Statement, Evidence: h.Evidence})
		}
		if c.Date != "" {
			if ts, err := time.Parse("2006-01-02", c.Date); err == nil {
				fact.Timestamp = &ts
			} else if ts, err := time.Parse(time.RFC3339, c.Date); err == nil {
				fact.Timestamp = &ts
			}
		}

		out = append(out, ordered{fact: fact, pos: pos, emit: i})
	}

	// Order of appearance in the source messages, emission order on ties.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].pos != out[j].pos {
			return out[i].pos < out[j].pos
		}
		return out[i].emit < out[j].emit
	})

	facts := make([]model.Fact, len(out))
	for i, o := range out {
		o.fact.Seq = i
		facts[i] = o.fact
	}
	return facts
}
