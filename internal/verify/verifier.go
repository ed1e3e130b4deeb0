// Package verify gates facts on their evidence. Nothing enters the graph
// without passing an explicit, logged evidentiary check here.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/factgraph/factgraph/internal/audit"
	"github.com/factgraph/factgraph/internal/cache"
	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/llm"
	"github.com/factgraph/factgraph/internal/model"
	"github.com/factgraph/factgraph/internal/ratelimit"
	"github.com/factgraph/factgraph/internal/retry"
)

// Result is the outcome of verifying one fact.
type Result struct {
	Status        model.FactStatus      `json:"status"`
	Confidence    float64               `json:"confidence"`
	Trace         []model.ReasoningStep `json:"trace,omitempty"`
	Contradiction string                `json:"contradiction,omitempty"`
	Attempts      int                   `json:"attempts"`
}

// Verifier re-examines candidate facts against their full cited evidence.
type Verifier struct {
	store    evidence.Store
	provider llm.Provider
	limiter  *ratelimit.Limiter
	policy   retry.Policy
	verdicts cache.Cache
	auditLog *audit.Log
	logger   *zap.Logger
}

// NewVerifier creates a verifier. verdicts may be nil to disable the
// idempotency cache; a nil logger disables event logging.
func NewVerifier(store evidence.Store, provider llm.Provider, limiter *ratelimit.Limiter, policy retry.Policy, verdicts cache.Cache, auditLog *audit.Log, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		store:    store,
		provider: provider,
		limiter:  limiter,
		policy:   policy,
		verdicts: verdicts,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Verify decides a fact's status in place and returns the result. The fact
// must be pending; completed facts are frozen and not re-decided.
func (v *Verifier) Verify(ctx context.Context, f *model.Fact) (Result, error) {
	if f.Terminal() {
		return Result{Status: f.Status, Confidence: f.VerifiedConfidence, Attempts: f.Attempts}, nil
	}

	msgs, err := evidence.Resolve(v.store, f.Evidence)
	if err != nil {
		// Extraction already validated evidence ids; a miss here means the
		// store changed under us. The claim cannot be supported.
		res := Result{Status: model.StatusRejected, Contradiction: err.Error()}
		v.apply(f, res, "evidence no longer resolves")
		return res, nil
	}

	if cached, ok := v.cachedResult(f, msgs); ok {
		v.logger.Info("verification_result",
			zap.String("correlation_id", f.ContextID),
			zap.String("fact_id", f.ID),
			zap.String("status", string(cached.Status)),
			zap.Bool("cached", true))
		v.apply(f, cached, "cached verdict")
		return cached, nil
	}

	var res Result
	if f.MultiHop() {
		res = v.verifyMultiHop(ctx, f)
	} else {
		res = v.verifySingle(ctx, f, msgs)
	}

	// A claim resting on a single message cannot be more trustworthy than
	// its extraction unless independently corroborated.
	if res.Status == model.StatusVerified && len(f.Evidence) < 2 && res.Confidence > f.ExtractionConfidence {
		res.Confidence = f.ExtractionConfidence
	}

	v.logger.Info("verification_result",
		zap.String("correlation_id", f.ContextID),
		zap.String("fact_id", f.ID),
		zap.String("status", string(res.Status)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("attempts", res.Attempts))

	v.apply(f, res, "")
	v.storeResult(f, msgs, res)
	return res, nil
}

// verifySingle checks a single-hop claim against its own evidence set.
func (v *Verifier) verifySingle(ctx context.Context, f *model.Fact, msgs []model.Message) Result {
	vd, attempts, err := v.judge(ctx, f, f.Text, msgs)
	if err != nil {
		// Availability failure, not falsity: excluded from the graph but
		// retained for a later run.
		return Result{
			Status:   model.StatusUnverified,
			Attempts: attempts,
		}
	}

	res := Result{
		Confidence:    vd.Confidence,
		Trace:         vd.trace(),
		Contradiction: vd.Contradiction,
		Attempts:      attempts,
	}
	if vd.Supported {
		res.Status = model.StatusVerified
	} else {
		res.Status = model.StatusRejected
	}
	return res
}

// verifyMultiHop checks each hop independently and combines confidences as
// the minimum across hops.
func (v *Verifier) verifyMultiHop(ctx context.Context, f *model.Fact) Result {
	var (
		confs    []float64
		trace    []model.ReasoningStep
		attempts int
	)

	for i, hop := range f.Hops {
		msgs, err := evidence.Resolve(v.store, hop.Evidence)
		if err != nil {
			return Result{
				Status:        model.StatusRejected,
				Trace:         trace,
				Contradiction: fmt.Sprintf("hop %d: %v", i+1, err),
				Attempts:      attempts,
			}
		}

		vd, hopAttempts, err := v.judge(ctx, f, hop.Statement, msgs)
		attempts += hopAttempts
		if err != nil {
			return Result{Status: model.StatusUnverified, Trace: trace, Attempts: attempts}
		}

		trace = append(trace, model.ReasoningStep{
			Inference: fmt.Sprintf("hop %d: %s", i+1, hop.Statement),
		})
		trace = append(trace, vd.trace()...)

		if !vd.Supported {
			return Result{
				Status:        model.StatusRejected,
				Trace:         trace,
				Contradiction: firstNonEmpty(vd.Contradiction, fmt.Sprintf("hop %d not supported by its evidence", i+1)),
				Attempts:      attempts,
			}
		}
		confs = append(confs, vd.Confidence)
	}

	return Result{
		Status:     model.StatusVerified,
		Confidence: combineHopConfidences(confs),
		Trace:      trace,
		Attempts:   attempts,
	}
}

// judge makes one rate-limited, retried judgment call. The returned error
// is non-nil only when the judgment source stayed unavailable through the
// whole retry budget.
func (v *Verifier) judge(ctx context.Context, f *model.Fact, claim string, msgs []model.Message) (*verdict, int, error) {
	prompt := buildVerificationPrompt(claim, msgs)

	var vd *verdict
	attempt := 0
	attempts, err := v.policy.Do(ctx, func(callCtx context.Context) error {
		attempt++
		v.logger.Info("verification_attempt",
			zap.String("correlation_id", f.ContextID),
			zap.String("fact_id", f.ID),
			zap.Int("attempt", attempt))

		if v.limiter != nil {
			if err := v.limiter.Wait(callCtx); err != nil {
				return err
			}
		}

		resp, err := v.provider.Complete(callCtx, llm.CompletionRequest{
			System: "You verify claims strictly against cited evidence. Never assume facts not present in the evidence.",
			Prompt: prompt,
		})
		if err != nil {
			return err
		}

		parsed, err := parseVerdict(resp.Text)
		if err != nil {
			return err
		}
		vd = parsed
		return nil
	})
	if err != nil {
		return nil, attempts, err
	}
	return vd, attempts, nil
}

// apply records the decision on the fact and routes non-verified outcomes
// to the audit side-channel.
func (v *Verifier) apply(f *model.Fact, res Result, reason string) {
	_ = f.SetVerification(res.Status, res.Confidence, res.Trace, res.Contradiction, res.Attempts)

	if v.auditLog == nil {
		return
	}
	switch res.Status {
	case model.StatusRejected:
		v.auditLog.RejectedFact(f, firstNonEmpty(reason, "evidence does not support the claim"), res.Contradiction)
	case model.StatusUnverified:
		v.auditLog.UnverifiedFact(f, firstNonEmpty(reason, "judgment source unavailable after retries"))
	}
}

func (v *Verifier) cachedResult(f *model.Fact, msgs []model.Message) (Result, bool) {
	if v.verdicts == nil {
		return Result{}, false
	}
	data, ok := v.verdicts.Get(cache.VerdictKey(f.Text, f.Evidence, bodies(msgs)))
	if !ok {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false
	}
	return res, true
}

func (v *Verifier) storeResult(f *model.Fact, msgs []model.Message, res Result) {
	if v.verdicts == nil {
		return
	}
	// Completed decisions only: an availability failure must be retried,
	// not remembered.
	if res.Status != model.StatusVerified && res.Status != model.StatusRejected {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	_ = v.verdicts.Set(cache.VerdictKey(f.Text, f.Evidence, bodies(msgs)), data, 30*24*time.Hour)
}

func bodies(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
