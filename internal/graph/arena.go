// Package graph builds the typed, evidence-traced knowledge graph from
// verified facts.
package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/factgraph/factgraph/internal/model"
)

// Arena owns every node and edge, addressed by stable ids. Merge is an
// explicit id-rewrite operation over all referencing edges: after a merge
// completes no edge references the merged-away id.
type Arena struct {
	mu        sync.RWMutex
	nodes     map[string]*model.Node
	canonical map[string]string // merged-away id to surviving id
	edges     []*model.Edge
	edgeIDs   map[string]*model.Edge
	warnings  []model.IntegrityWarning

	mutation sync.Mutex
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		nodes:     make(map[string]*model.Node),
		canonical: make(map[string]string),
		edgeIDs:   make(map[string]*model.Edge),
	}
}

// BeginMutation acquires the single-writer lock guarding compound graph
// updates. One fact's dedup lookup, node insertion or merge, and edge
// bookkeeping happen as one atomic unit under this lock; concurrent
// contexts serialize here. The returned func releases the lock.
func (a *Arena) BeginMutation() func() {
	a.mutation.Lock()
	return a.mutation.Unlock
}

// AddNode inserts a node. The id must be unused.
func (a *Arena) AddNode(n *model.Node) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.nodes[n.ID]; dup {
		return fmt.Errorf("node id %q already present", n.ID)
	}
	if _, merged := a.canonical[n.ID]; merged {
		return fmt.Errorf("node id %q was merged away", n.ID)
	}
	a.nodes[n.ID] = n
	return nil
}

// Node returns the canonical node for id, following merge redirects.
func (a *Arena) Node(id string) (*model.Node, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.nodes[a.resolveLocked(id)]
	return n, ok
}

// CanonicalID resolves id through any merges it was absorbed by.
func (a *Arena) CanonicalID(id string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolveLocked(id)
}

func (a *Arena) resolveLocked(id string) string {
	for {
		next, ok := a.canonical[id]
		if !ok {
			return id
		}
		id = next
	}
}

// NodesOfType returns current canonical nodes of one type.
func (a *Arena) NodesOfType(t model.NodeType) []*model.Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []*model.Node
	for _, n := range a.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddEdge inserts an edge between two canonical ids.
func (a *Arena) AddEdge(e *model.Edge) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.edgeIDs[e.ID]; dup {
		return fmt.Errorf("edge id %q already present", e.ID)
	}
	e.SourceID = a.resolveLocked(e.SourceID)
	e.TargetID = a.resolveLocked(e.TargetID)
	if _, ok := a.nodes[e.SourceID]; !ok {
		return fmt.Errorf("edge %s references unknown source %q", e.ID, e.SourceID)
	}
	if _, ok := a.nodes[e.TargetID]; !ok {
		return fmt.Errorf("edge %s references unknown target %q", e.ID, e.TargetID)
	}
	a.edges = append(a.edges, e)
	a.edgeIDs[e.ID] = e
	return nil
}

// AbsorbMention unions a new surface form and its supporting fact into the
// canonical node for id, widening the first/last-seen window.
func (a *Arena) AbsorbMention(id, name string, evidence []string, factID string, firstSeen, lastSeen time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.nodes[a.resolveLocked(id)]
	if !ok {
		return fmt.Errorf("node %q not found", id)
	}
	if !n.HasAlias(name) {
		n.Aliases = append(n.Aliases, name)
	}
	n.Evidence = unionStrings(n.Evidence, evidence)
	if factID != "" {
		n.FactIDs = unionStrings(n.FactIDs, []string{factID})
	}
	if firstSeen.Before(n.FirstSeen) {
		n.FirstSeen = firstSeen
	}
	if lastSeen.After(n.LastSeen) {
		n.LastSeen = lastSeen
	}
	return nil
}

// UpsertEdge inserts e unless an identical active triple already exists, in
// which case e's evidence accrues onto the existing edge instead. When
// singleTarget is set, a conflicting active edge from the same source is
// superseded before insertion. Returns the superseded edge, if any.
func (a *Arena) UpsertEdge(e *model.Edge, singleTarget bool) (*model.Edge, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.edgeIDs[e.ID]; dup {
		return nil, fmt.Errorf("edge id %q already present", e.ID)
	}
	e.SourceID = a.resolveLocked(e.SourceID)
	e.TargetID = a.resolveLocked(e.TargetID)
	if _, ok := a.nodes[e.SourceID]; !ok {
		return nil, fmt.Errorf("edge %s references unknown source %q", e.ID, e.SourceID)
	}
	if _, ok := a.nodes[e.TargetID]; !ok {
		return nil, fmt.Errorf("edge %s references unknown target %q", e.ID, e.TargetID)
	}

	for _, existing := range a.edges {
		if !existing.Superseded && existing.Type == e.Type &&
			existing.SourceID == e.SourceID && existing.TargetID == e.TargetID {
			existing.Evidence = unionStrings(existing.Evidence, e.Evidence)
			return nil, nil
		}
	}

	var superseded *model.Edge
	if singleTarget {
		for i := len(a.edges) - 1; i >= 0; i-- {
			old := a.edges[i]
			if !old.Superseded && old.Type == e.Type && old.SourceID == e.SourceID && old.TargetID != e.TargetID {
				old.Superseded = true
				old.SupersededBy = e.ID
				superseded = old
				break
			}
		}
	}
	a.edges = append(a.edges, e)
	a.edgeIDs[e.ID] = e
	return superseded, nil
}

// RecordPhase stores the inferred lifecycle phase on the project node. The
// first writer wins; later contexts never overwrite an existing phase.
func (a *Arena) RecordPhase(projectID, phase, reasoning string) {
	if phase == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.nodes[a.resolveLocked(projectID)]
	if !ok {
		return
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]string)
	}
	if n.Attributes["phase"] == "" {
		n.Attributes["phase"] = phase
		n.Attributes["phase_reasoning"] = reasoning
	}
}

// ActiveEdge returns the non-superseded edge with the given source and
// type, if one exists.
func (a *Arena) ActiveEdge(sourceID string, t model.EdgeType) (*model.Edge, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sourceID = a.resolveLocked(sourceID)
	for i := len(a.edges) - 1; i >= 0; i-- {
		e := a.edges[i]
		if !e.Superseded && e.Type == t && e.SourceID == sourceID {
			return e, true
		}
	}
	return nil, false
}

// FindEdge returns the non-superseded edge matching the full triple.
func (a *Arena) FindEdge(sourceID, targetID string, t model.EdgeType) (*model.Edge, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sourceID = a.resolveLocked(sourceID)
	targetID = a.resolveLocked(targetID)
	for _, e := range a.edges {
		if !e.Superseded && e.Type == t && e.SourceID == sourceID && e.TargetID == targetID {
			return e, true
		}
	}
	return nil, false
}

// Merge absorbs src into dst: aliases, evidence, and fact ids are unioned,
// first/last seen widen, src's id joins dst's merged-from trail, and every
// edge referencing src is rewritten to dst. src ceases to exist as a
// canonical id but remains resolvable.
func (a *Arena) Merge(dstID, srcID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dstID = a.resolveLocked(dstID)
	srcID = a.resolveLocked(srcID)
	if dstID == srcID {
		return nil
	}
	dst, ok := a.nodes[dstID]
	if !ok {
		return fmt.Errorf("merge destination %q not found", dstID)
	}
	src, ok := a.nodes[srcID]
	if !ok {
		return fmt.Errorf("merge source %q not found", srcID)
	}
	if dst.Type != src.Type {
		return fmt.Errorf("cannot merge %s node into %s node", src.Type, dst.Type)
	}

	if !dst.HasAlias(src.CanonicalName) {
		dst.Aliases = append(dst.Aliases, src.CanonicalName)
	}
	for _, alias := range src.Aliases {
		if !dst.HasAlias(alias) {
			dst.Aliases = append(dst.Aliases, alias)
		}
	}
	dst.Evidence = unionStrings(dst.Evidence, src.Evidence)
	dst.FactIDs = unionStrings(dst.FactIDs, src.FactIDs)
	if src.FirstSeen.Before(dst.FirstSeen) {
		dst.FirstSeen = src.FirstSeen
	}
	if src.LastSeen.After(dst.LastSeen) {
		dst.LastSeen = src.LastSeen
	}
	dst.MergedFrom = append(dst.MergedFrom, src.ID)
	dst.MergedFrom = append(dst.MergedFrom, src.MergedFrom...)
	for k, v := range src.Attributes {
		if _, exists := dst.Attributes[k]; !exists {
			if dst.Attributes == nil {
				dst.Attributes = make(map[string]string)
			}
			dst.Attributes[k] = v
		}
	}

	// Rewrite every referencing edge; no dangling ids survive a merge.
	for _, e := range a.edges {
		if e.SourceID == srcID {
			e.SourceID = dstID
		}
		if e.TargetID == srcID {
			e.TargetID = dstID
		}
	}

	delete(a.nodes, srcID)
	a.canonical[srcID] = dstID
	return nil
}

// Warn records a structural-graph problem. Processing continues.
func (a *Arena) Warn(w model.IntegrityWarning) {
	a.mu.Lock()
	a.warnings = append(a.warnings, w)
	a.mu.Unlock()
}

// Warnings returns all recorded integrity warnings.
func (a *Arena) Warnings() []model.IntegrityWarning {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.IntegrityWarning, len(a.warnings))
	copy(out, a.warnings)
	return out
}

// CheckDangling verifies no edge references a merged-away node id, warning
// on any found. It returns the number of dangling references.
func (a *Arena) CheckDangling() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	dangling := 0
	for _, e := range a.edges {
		for _, id := range []string{e.SourceID, e.TargetID} {
			if _, ok := a.nodes[id]; !ok {
				dangling++
				a.warnings = append(a.warnings, model.IntegrityWarning{
					Kind:    "dangling_edge",
					Detail:  fmt.Sprintf("edge %s references non-canonical node %s", e.ID, id),
					NodeIDs: []string{id},
				})
			}
		}
	}
	return dangling
}

// Document exports the full graph artifact.
func (a *Arena) Document() model.GraphDocument {
	a.mu.RLock()
	defer a.mu.RUnlock()

	nodes := make([]*model.Node, 0, len(a.nodes))
	for _, n := range a.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].FirstSeen.Equal(nodes[j].FirstSeen) {
			return nodes[i].FirstSeen.Before(nodes[j].FirstSeen)
		}
		return nodes[i].ID < nodes[j].ID
	})

	edges := make([]*model.Edge, len(a.edges))
	copy(edges, a.edges)
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].EstablishedAt.Equal(edges[j].EstablishedAt) {
			return edges[i].EstablishedAt.Before(edges[j].EstablishedAt)
		}
		return edges[i].Seq < edges[j].Seq
	})

	stats := model.GraphStats{
		TotalNodes:  len(nodes),
		TotalEdges:  len(edges),
		NodesByType: make(map[model.NodeType]int),
		EdgesByType: make(map[model.EdgeType]int),
	}
	for _, n := range nodes {
		stats.NodesByType[n.Type]++
	}
	for _, e := range edges {
		stats.EdgesByType[e.Type]++
	}

	warnings := make([]model.IntegrityWarning, len(a.warnings))
	copy(warnings, a.warnings)

	return model.GraphDocument{
		Nodes:    nodes,
		Edges:    edges,
		Stats:    stats,
		Warnings: warnings,
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
