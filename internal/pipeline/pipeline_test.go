package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/factgraph/factgraph/internal/audit"
	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/extract"
	"github.com/factgraph/factgraph/internal/graph"
	"github.com/factgraph/factgraph/internal/llm"
	"github.com/factgraph/factgraph/internal/model"
	"github.com/factgraph/factgraph/internal/retry"
	"github.com/factgraph/factgraph/internal/verify"
)

// stageProvider answers extraction prompts with a fixed batch and every
// verification prompt with a supportive verdict.
type stageProvider struct {
	batch string
}

func (p *stageProvider) Name() string { return "stage" }

func (p *stageProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if strings.Contains(req.Prompt, "Verify whether the evidence supports the claim") {
		return &llm.CompletionResponse{Text: `{"supported": true, "confidence": 0.9, "reasoning": [{"message_id": "m1", "quote": "q", "inference": "i"}], "contradiction": ""}`}, nil
	}
	return &llm.CompletionResponse{Text: p.batch}, nil
}

func (p *stageProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, llm.ErrEmbeddingsUnsupported
}

func (p *stageProvider) IsAvailable(ctx context.Context) bool { return true }

func pipelineFixture(t *testing.T, batch string) (*Pipeline, model.ProjectContext, evidence.Store, *graph.Arena) {
	t.Helper()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store, err := evidence.NewMemoryStore([]model.Message{
		{ID: "m1", Sender: "ana@corp.test", Body: "Kicking off the billing migration.", Timestamp: base},
		{ID: "m2", Sender: "bo@corp.test", Body: "Vendor API is blocked on credentials.", Timestamp: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}
	pc := model.ProjectContext{ID: "ctx-1", Name: "Apollo", MessageIDs: []string{"m1", "m2"}}

	provider := &stageProvider{batch: batch}
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error { return nil }}

	extractor := extract.NewExtractor(provider, nil, nil, model.ExtractConfig{MaxSchemaRetries: 2, MaxContextMessages: 15}, nil)
	verifier := verify.NewVerifier(store, provider, nil, policy, nil, audit.NewLog(), nil)
	arena := graph.NewArena()
	dedup := graph.NewDeduper(graph.LexicalSimilarity{}, 0.90, nil)
	builder := graph.NewBuilder(arena, dedup, store, nil)

	return NewPipeline(extractor, verifier, builder, 2, nil), pc, store, arena
}

func TestProcessContext_EndToEnd(t *testing.T) {
	batch := `{
		"facts": [
			{"claim_type": "topic", "text": "Billing Migration", "evidence": ["m1"], "confidence": 0.9},
			{"claim_type": "challenge", "text": "Vendor API blocked on credentials", "evidence": ["m2"], "confidence": 0.85}
		],
		"project_phase": "execution",
		"phase_reasoning": "Work is in flight."
	}`
	p, pc, store, arena := pipelineFixture(t, batch)

	res, err := p.ProcessContext(context.Background(), pc, store)
	if err != nil {
		t.Fatalf("ProcessContext: %v", err)
	}
	if res.ContextID != "ctx-1" {
		t.Errorf("context id = %q", res.ContextID)
	}
	if len(res.Facts) != 2 {
		t.Fatalf("facts = %d, want 2", len(res.Facts))
	}
	for i, f := range res.Facts {
		if f.Status != model.StatusVerified {
			t.Errorf("facts[%d].Status = %s, want verified", i, f.Status)
		}
	}

	project, ok := arena.Node(res.ProjectID)
	if !ok {
		t.Fatal("project node missing")
	}
	if project.CanonicalName != "Apollo" {
		t.Errorf("project name = %q", project.CanonicalName)
	}
	if project.Attributes["phase"] != "execution" {
		t.Errorf("phase attribute = %q, want execution", project.Attributes["phase"])
	}
	if project.Attributes["phase_reasoning"] == "" {
		t.Error("phase reasoning not recorded")
	}
	if !project.FirstSeen.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("project first seen = %v, want the earliest context message", project.FirstSeen)
	}

	doc := arena.Document()
	if doc.Stats.NodesByType[model.NodeTopic] != 1 || doc.Stats.NodesByType[model.NodeChallenge] != 1 {
		t.Errorf("graph stats = %+v", doc.Stats)
	}
	if doc.Stats.EdgesByType[model.EdgeHasTopic] != 1 || doc.Stats.EdgesByType[model.EdgeFacedChallenge] != 1 {
		t.Errorf("edge stats = %+v", doc.Stats)
	}
}

func TestProcessContext_EmptyBatch(t *testing.T) {
	p, pc, store, arena := pipelineFixture(t, `{"facts": []}`)

	res, err := p.ProcessContext(context.Background(), pc, store)
	if err != nil {
		t.Fatalf("ProcessContext: %v", err)
	}
	if len(res.Facts) != 0 {
		t.Errorf("facts = %d, want 0", len(res.Facts))
	}
	// The project node still exists so the context is represented.
	if _, ok := arena.Node(res.ProjectID); !ok {
		t.Error("project node missing for an empty context")
	}
}

func TestProcessContext_PhaseNotOverwritten(t *testing.T) {
	p, pc, store, arena := pipelineFixture(t, `{"facts": [], "project_phase": "delivery", "phase_reasoning": "later"}`)

	res, err := p.ProcessContext(context.Background(), pc, store)
	if err != nil {
		t.Fatal(err)
	}
	node, _ := arena.Node(res.ProjectID)
	node.Attributes["phase"] = "scoping"

	// A second pass over the same project must keep the earlier phase.
	if _, err := p.ProcessContext(context.Background(), pc, store); err != nil {
		t.Fatal(err)
	}
	if node.Attributes["phase"] != "scoping" {
		t.Errorf("phase overwritten to %q", node.Attributes["phase"])
	}
}

func TestRenderer_WritesArtifacts(t *testing.T) {
	log := audit.NewLog()
	log.StructuralFailure("ctx-2", "no valid output", 3)

	result := &RunResult{
		RunID: "run-1",
		Report: model.TrustReport{
			OverallScore:       0.8,
			CalibrationVersion: "builtin-v1",
		},
		Graph: model.GraphDocument{},
		Audit: log,
	}

	dir := filepath.Join(t.TempDir(), "out")
	if err := NewRenderer(false).Render(result, dir); err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, name := range []string{"graph.json", "trust_report.json", "audit.jsonl"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("artifact %s is empty", name)
		}
	}

	var rep model.TrustReport
	data, _ := os.ReadFile(filepath.Join(dir, "trust_report.json"))
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("trust report not valid JSON: %v", err)
	}
	if rep.OverallScore != 0.8 {
		t.Errorf("round-tripped score = %v", rep.OverallScore)
	}
}
