package model

import "time"

// NodeType classifies canonical entity nodes
type NodeType string

const (
	NodeProject     NodeType = "Project"
	NodePerson      NodeType = "Person"
	NodeTopic       NodeType = "Topic"
	NodeChallenge   NodeType = "Challenge"
	NodeResolution  NodeType = "Resolution"
	NodeDeliverable NodeType = "Deliverable"
	NodeMilestone   NodeType = "Milestone"
	NodeDependency  NodeType = "Dependency"
	NodeDecision    NodeType = "Decision"
	NodeRisk        NodeType = "Risk"
)

// Node is the canonical representation of one real-world entity. Nodes are
// created from verified facts, mutated only by the dedup merge operation,
// and never deleted: a duplicate is merged into the surviving node and its
// id is recorded in MergedFrom.
type Node struct {
	ID            string            `json:"id"`
	Type          NodeType          `json:"type"`
	CanonicalName string            `json:"canonical_name"`
	Aliases       []string          `json:"aliases,omitempty"`
	FirstSeen     time.Time         `json:"first_seen"`
	LastSeen      time.Time         `json:"last_seen"`
	Evidence      []string          `json:"evidence"` // message ids
	FactIDs       []string          `json:"fact_ids"` // facts this node was built from
	MergedFrom    []string          `json:"merged_from,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// HasAlias reports whether name is already among the node's surface forms.
func (n *Node) HasAlias(name string) bool {
	if n.CanonicalName == name {
		return true
	}
	for _, a := range n.Aliases {
		if a == name {
			return true
		}
	}
	return false
}
