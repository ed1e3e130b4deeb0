package score

import (
	"math"

	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/model"
)

// estimateCompleteness approximates extraction completeness when no ground
// truth is available. Two signals: observed graph content versus the density
// the calibration expects, and the fraction of source messages cited as
// evidence.
func estimateCompleteness(doc model.GraphDocument, store evidence.Store, expectedPerMessage float64) (float64, map[string]interface{}) {
	numMessages := store.Len()
	numFacts := len(doc.Nodes) + len(doc.Edges)

	expected := float64(numMessages) * expectedPerMessage
	coverageRatio := 0.0
	if expected > 0 {
		coverageRatio = math.Min(float64(numFacts)/expected, 1.0)
	}

	used := make(map[string]struct{})
	for _, n := range doc.Nodes {
		for _, id := range n.Evidence {
			if store.Has(id) {
				used[id] = struct{}{}
			}
		}
	}
	evidenceCoverage := 0.0
	if numMessages > 0 {
		evidenceCoverage = float64(len(used)) / float64(numMessages)
	}

	estimated := coverageRatio*0.6 + evidenceCoverage*0.4

	return estimated, map[string]interface{}{
		"messages":          numMessages,
		"facts":             numFacts,
		"expected_facts":    expected,
		"coverage_ratio":    coverageRatio,
		"evidence_coverage": evidenceCoverage,
		"formula":           "min(facts / (messages * expected_per_message), 1) * 0.6 + cited_messages / messages * 0.4",
	}
}
