package model

import "time"

// Component is one named quality dimension of the trust score, with the
// inputs that produced it kept transparent for audit.
type Component struct {
	Name   string                 `json:"name"`
	Score  float64                `json:"score"`
	Weight float64                `json:"weight"`
	Data   map[string]interface{} `json:"data,omitempty"` // formulas and raw inputs
}

// TrustReport is the single run-level quality summary. The overall score is
// a deterministic function of the fact population and graph state at report
// time: recomputing from identical state yields an identical report (modulo
// GeneratedAt).
type TrustReport struct {
	OverallScore        float64     `json:"overall_score"`
	Components          []Component `json:"component_breakdown"`
	TotalFacts          int         `json:"total_facts"`
	VerifiedFactCount   int         `json:"verified_fact_count"`
	RejectedFactCount   int         `json:"rejected_fact_count"`
	UnverifiedFactCount int         `json:"unverified_fact_count"`
	CalibrationVersion  string      `json:"calibration_version"`
	GeneratedAt         time.Time   `json:"generated_at"`
}

// IntegrityWarning flags a structural-graph problem (dependency cycle,
// dangling reference) found during graph construction. Warnings never stop
// processing; they are recorded and surfaced.
type IntegrityWarning struct {
	Kind    string   `json:"kind"` // "dependency_cycle", "dangling_edge"
	Detail  string   `json:"detail"`
	NodeIDs []string `json:"node_ids,omitempty"`
}

// GraphStats holds node and edge counts by type.
type GraphStats struct {
	TotalNodes  int              `json:"total_nodes"`
	TotalEdges  int              `json:"total_edges"`
	NodesByType map[NodeType]int `json:"node_types"`
	EdgesByType map[EdgeType]int `json:"edge_types"`
}

// GraphDocument is the exported graph artifact.
type GraphDocument struct {
	Nodes    []*Node            `json:"nodes"`
	Edges    []*Edge            `json:"edges"`
	Stats    GraphStats         `json:"stats"`
	Warnings []IntegrityWarning `json:"warnings,omitempty"`
}
