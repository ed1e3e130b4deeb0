package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/factgraph/factgraph/internal/model"
)

func sampleFact() *model.Fact {
	return &model.Fact{
		ID:        "f1",
		ContextID: "ctx-1",
		ClaimType: model.ClaimTypeChallenge,
		Text:      "Vendor API blocked",
		Evidence:  []string{"m1", "m2"},
	}
}

func TestRejectedFact(t *testing.T) {
	log := NewLog()
	log.RejectedFact(sampleFact(), "evidence does not support the claim", "m2 contradicts the claim")

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != KindRejected {
		t.Errorf("kind = %s", e.Kind)
	}
	if e.FactID != "f1" || e.ContextID != "ctx-1" {
		t.Errorf("ids not carried: %s / %s", e.FactID, e.ContextID)
	}
	if e.Contradiction == "" {
		t.Error("contradiction dropped")
	}
	if e.Retryable {
		t.Error("rejection is final, never retryable")
	}
	if e.Time.IsZero() {
		t.Error("entry not timestamped")
	}
}

func TestUnverifiedFactIsRetryable(t *testing.T) {
	log := NewLog()
	log.UnverifiedFact(sampleFact(), "judgment source unavailable after retries")

	e := log.Entries()[0]
	if e.Kind != KindUnverified {
		t.Errorf("kind = %s", e.Kind)
	}
	if !e.Retryable {
		t.Error("unverified entries must be retryable")
	}
}

func TestStructuralFailureCarriesAttempts(t *testing.T) {
	log := NewLog()
	log.StructuralFailure("ctx-1", "schema violation: missing facts", 3)

	e := log.Entries()[0]
	if e.Kind != KindStructuralFailure {
		t.Errorf("kind = %s", e.Kind)
	}
	if e.Details["attempts"] != 3 {
		t.Errorf("attempts = %v", e.Details["attempts"])
	}
}

func TestCount(t *testing.T) {
	log := NewLog()
	log.RejectedFact(sampleFact(), "r", "")
	log.RejectedFact(sampleFact(), "r", "")
	log.UnverifiedFact(sampleFact(), "u")
	log.IntegrityWarning(model.IntegrityWarning{Kind: "dependency_cycle", Detail: "d1 -> d2 -> d1"})

	if got := log.Count(KindRejected); got != 2 {
		t.Errorf("rejected = %d, want 2", got)
	}
	if got := log.Count(KindUnverified); got != 1 {
		t.Errorf("unverified = %d, want 1", got)
	}
	if got := log.Count(KindIntegrityWarning); got != 1 {
		t.Errorf("integrity warnings = %d, want 1", got)
	}
}

func TestWriteJSONL(t *testing.T) {
	log := NewLog()
	log.RejectedFact(sampleFact(), "reason", "contradiction")
	log.UnverifiedFact(sampleFact(), "unavailable")

	var buf bytes.Buffer
	if err := log.WriteJSONL(&buf); err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		lines++
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Errorf("line %d is not valid JSON: %v", lines, err)
		}
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestWriteFile(t *testing.T) {
	log := NewLog()
	log.StructuralFailure("ctx-1", "no valid output", 3)

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := log.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var e Entry
	if err := json.Unmarshal(bytes.TrimSpace(data), &e); err != nil {
		t.Fatalf("file content not JSONL: %v", err)
	}
	if e.ContextID != "ctx-1" {
		t.Errorf("context id = %q", e.ContextID)
	}
}
