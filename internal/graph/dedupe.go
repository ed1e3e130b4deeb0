package graph

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/factgraph/factgraph/internal/model"
)

// Deduper finds which existing canonical node, if any, a new entity mention
// should merge into.
type Deduper struct {
	sim       Similarity
	threshold float64
	logger    *zap.Logger
}

// NewDeduper creates a deduper with the given similarity measure and merge
// threshold.
func NewDeduper(sim Similarity, threshold float64, logger *zap.Logger) *Deduper {
	if threshold <= 0 {
		threshold = 0.90
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{sim: sim, threshold: threshold, logger: logger}
}

// Match is one existing node scoring at or above the merge threshold.
type Match struct {
	NodeID string
	Score  float64
}

// FindMatches scores name against every current node of the given type and
// returns all matches at or above the threshold, best first. An exact alias
// hit scores 1.0 without consulting the similarity measure.
func (d *Deduper) FindMatches(ctx context.Context, arena *Arena, t model.NodeType, name string) ([]Match, error) {
	var matches []Match
	for _, n := range arena.NodesOfType(t) {
		if n.HasAlias(name) || normalizeName(n.CanonicalName) == normalizeName(name) {
			matches = append(matches, Match{NodeID: n.ID, Score: 1.0})
			continue
		}

		best := 0.0
		for _, surface := range append([]string{n.CanonicalName}, n.Aliases...) {
			score, err := d.sim.Score(ctx, surface, name)
			if err != nil {
				return nil, err
			}
			if score > best {
				best = score
			}
		}
		if best >= d.threshold {
			matches = append(matches, Match{NodeID: n.ID, Score: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

// LogDecision records a merge decision with its similarity score for audit.
func (d *Deduper) LogDecision(t model.NodeType, name, nodeID string, score float64, merged bool) {
	d.logger.Info("merge_decision",
		zap.String("node_type", string(t)),
		zap.String("name", name),
		zap.String("node_id", nodeID),
		zap.Float64("similarity", score),
		zap.Float64("threshold", d.threshold),
		zap.Bool("merged", merged))
}

// Threshold returns the configured merge threshold.
func (d *Deduper) Threshold() float64 {
	return d.threshold
}
