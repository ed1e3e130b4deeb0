// Package audit is the side-channel for everything that did not enter the
// graph: rejected and unverified facts, structural extraction failures, and
// graph integrity warnings. Nothing is dropped silently.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/factgraph/factgraph/internal/model"
)

// EntryKind classifies audit entries
type EntryKind string

const (
	KindRejected          EntryKind = "rejected"
	KindUnverified        EntryKind = "unverified"
	KindStructuralFailure EntryKind = "structural_failure"
	KindIntegrityWarning  EntryKind = "integrity_warning"
)

// Entry is one audit record.
type Entry struct {
	Time      time.Time `json:"time"`
	Kind      EntryKind `json:"kind"`
	ContextID string    `json:"context_id,omitempty"`
	FactID    string    `json:"fact_id,omitempty"`
	Claim     string    `json:"claim,omitempty"`
	Reason    string    `json:"reason"`

	// Contradiction carries the verifier's contradiction note for
	// rejected facts.
	Contradiction string `json:"contradiction,omitempty"`

	// Retryable marks entries that a later run should re-attempt
	// (unverified facts, where failure was about availability).
	Retryable bool `json:"retryable,omitempty"`

	Evidence  []string              `json:"evidence,omitempty"`
	Reasoning []model.ReasoningStep `json:"reasoning,omitempty"`
	Details   map[string]any        `json:"details,omitempty"`
}

// Log is a thread-safe collector of audit entries.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append records an entry, stamping it if no time was set.
func (l *Log) Append(e Entry) {
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// RejectedFact records a fact whose evidence did not support it.
func (l *Log) RejectedFact(f *model.Fact, reason, contradiction string) {
	l.Append(Entry{
		Kind:          KindRejected,
		ContextID:     f.ContextID,
		FactID:        f.ID,
		Claim:         f.Text,
		Reason:        reason,
		Contradiction: contradiction,
		Evidence:      f.Evidence,
		Reasoning:     f.ReasoningTrace,
	})
}

// UnverifiedFact records a fact whose verification could not be completed.
func (l *Log) UnverifiedFact(f *model.Fact, reason string) {
	l.Append(Entry{
		Kind:      KindUnverified,
		ContextID: f.ContextID,
		FactID:    f.ID,
		Claim:     f.Text,
		Reason:    reason,
		Retryable: true,
		Evidence:  f.Evidence,
	})
}

// StructuralFailure records an extraction context that yielded no facts
// after exhausting corrective retries.
func (l *Log) StructuralFailure(contextID, reason string, attempts int) {
	l.Append(Entry{
		Kind:      KindStructuralFailure,
		ContextID: contextID,
		Reason:    reason,
		Details:   map[string]any{"attempts": attempts},
	})
}

// IntegrityWarning records a structural-graph problem.
func (l *Log) IntegrityWarning(w model.IntegrityWarning) {
	l.Append(Entry{
		Kind:    KindIntegrityWarning,
		Reason:  w.Detail,
		Details: map[string]any{"warning_kind": w.Kind, "node_ids": w.NodeIDs},
	})
}

// Entries returns a copy of all recorded entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how many entries of the given kind were recorded.
func (l *Log) Count(kind EntryKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// WriteJSONL writes one JSON object per line.
func (l *Log) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range l.Entries() {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode audit entry: %w", err)
		}
	}
	return nil
}

// WriteFile writes the log as JSONL to path.
func (l *Log) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close audit log: %w", closeErr)
		}
	}()
	return l.WriteJSONL(f)
}
