package model

import (
	"errors"
	"time"
)

// ClaimType categorizes the nature of an extracted claim
type ClaimType string

const (
	ClaimTypeTopic       ClaimType = "topic"       // Theme or subject within a project
	ClaimTypeChallenge   ClaimType = "challenge"   // Problem, blocker, or concern
	ClaimTypeResolution  ClaimType = "resolution"  // Solution or fix for a challenge
	ClaimTypePerson      ClaimType = "person"      // Participant or stakeholder
	ClaimTypeDeliverable ClaimType = "deliverable" // Artifact being produced
	ClaimTypeMilestone   ClaimType = "milestone"   // Dated checkpoint
	ClaimTypeDependency  ClaimType = "dependency"  // One item depends on another
	ClaimTypeDecision    ClaimType = "decision"    // Explicit choice that was made
	ClaimTypeRisk        ClaimType = "risk"        // Stated or implied risk
)

// ValidClaimType reports whether t is one of the enumerated claim types.
func ValidClaimType(t ClaimType) bool {
	switch t {
	case ClaimTypeTopic, ClaimTypeChallenge, ClaimTypeResolution, ClaimTypePerson,
		ClaimTypeDeliverable, ClaimTypeMilestone, ClaimTypeDependency,
		ClaimTypeDecision, ClaimTypeRisk:
		return true
	}
	return false
}

// FactStatus is the lifecycle state of a Fact
type FactStatus string

const (
	StatusPending FactStatus = "pending" // Extracted, not yet verified

	// StatusVerified means the evidence supports the claim.
	StatusVerified FactStatus = "verified"

	// StatusUnverified means verification could not be completed (the
	// judgment source was unavailable). Unverified facts never enter the
	// graph but are retained for audit and re-run; failure here is about
	// availability, not falsity.
	StatusUnverified FactStatus = "unverified"

	// StatusRejected means verification completed and the evidence does not
	// support the claim (or contradicts it).
	StatusRejected FactStatus = "rejected"
)

// ReasoningStep is one step in a reasoning trace: an evidence quote tied to
// the message it came from, plus the inference drawn from it.
type ReasoningStep struct {
	MessageID string `json:"message_id,omitempty"`
	Quote     string `json:"quote,omitempty"`
	Inference string `json:"inference"`
}

// Hop is one independently checkable step of a multi-hop claim.
type Hop struct {
	Statement string   `json:"statement"`
	Evidence  []string `json:"evidence"`
}

// Fact is a single extracted claim with cited evidence and a lifecycle
// status. The extractor creates facts in status pending; only the verifier
// mutates them afterwards, and once a terminal status is set the fact is
// frozen.
type Fact struct {
	ID        string    `json:"fact_id"`
	ContextID string    `json:"context_id"`
	ClaimType ClaimType `json:"claim_type"`
	Text      string    `json:"text"`

	// Evidence is the non-empty set of message IDs the claim is grounded in.
	Evidence []string `json:"evidence"`

	// Hops is set for multi-hop claims; each hop is checked independently
	// and the combined confidence is the minimum across hops.
	Hops []Hop `json:"hops,omitempty"`

	// ExtractionConfidence reflects extraction-time certainty only
	// (lexical and contextual strength), never verification.
	ExtractionConfidence float64 `json:"extraction_confidence"`

	// VerifiedConfidence is attached by the verifier.
	VerifiedConfidence float64    `json:"verified_confidence,omitempty"`
	Status             FactStatus `json:"status"`

	ReasoningTrace []ReasoningStep `json:"reasoning_trace,omitempty"`

	// Contradiction notes any contradicting evidence the verifier found.
	Contradiction string `json:"contradiction,omitempty"`

	// Attributes carries claim-type specific fields (category, resolves,
	// owner, depends_on targets, dates) extracted alongside the claim text.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Seq is the order of appearance in the source messages within one
	// context. Ties on established_at timestamps are broken by Seq so the
	// extraction order survives into the graph.
	Seq int `json:"seq"`

	// Timestamp is the claim's own date when one was extracted; when empty
	// the graph builder falls back to the earliest cited message timestamp.
	Timestamp *time.Time `json:"timestamp,omitempty"`

	Attempts int `json:"verification_attempts,omitempty"`

	frozen bool
}

// ErrFactFrozen is returned when a verified-complete fact is mutated.
var ErrFactFrozen = errors.New("fact is frozen after verification")

// MultiHop reports whether the fact must be checked hop by hop.
func (f *Fact) MultiHop() bool {
	return len(f.Hops) > 1
}

// Terminal reports whether the fact reached a final status.
func (f *Fact) Terminal() bool {
	return f.Status == StatusVerified || f.Status == StatusUnverified || f.Status == StatusRejected
}

// SetVerification records the verifier's decision. It fails once the fact
// has been frozen by a prior completed verification.
func (f *Fact) SetVerification(status FactStatus, confidence float64, trace []ReasoningStep, contradiction string, attempts int) error {
	if f.frozen {
		return ErrFactFrozen
	}
	f.Status = status
	f.VerifiedConfidence = confidence
	f.ReasoningTrace = append(f.ReasoningTrace, trace...)
	f.Contradiction = contradiction
	f.Attempts = attempts
	if f.Terminal() {
		f.frozen = true
	}
	return nil
}
