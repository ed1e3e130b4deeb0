package model

import "time"

// EdgeType classifies directed relationships between entity nodes
type EdgeType string

const (
	EdgeHasTopic       EdgeType = "HAS_TOPIC"
	EdgeFacedChallenge EdgeType = "FACED_CHALLENGE"
	EdgeResolvedBy     EdgeType = "RESOLVED_BY"
	EdgeCauses         EdgeType = "CAUSES"
	EdgeDependsOn      EdgeType = "DEPENDS_ON"
	EdgeResolves       EdgeType = "RESOLVES"
	EdgeMentions       EdgeType = "MENTIONS"
	EdgeDelivered      EdgeType = "DELIVERED"
	EdgeOwnedBy        EdgeType = "OWNED_BY"
	EdgeMitigates      EdgeType = "MITIGATES"
)

// Edge is a typed, directed link between two canonical nodes. Edges are
// never mutated in place: when newer evidence conflicts, the old edge is
// marked superseded and retained for audit.
type Edge struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	TargetID      string    `json:"target_id"`
	Type          EdgeType  `json:"type"`
	Evidence      []string  `json:"evidence"` // fact ids
	EstablishedAt time.Time `json:"established_at"`
	Confidence    float64   `json:"confidence"`

	// Seq breaks established_at ties so same-timestamp edges keep the
	// extraction order of the facts that produced them.
	Seq int `json:"seq"`

	Superseded   bool   `json:"superseded,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`
}
