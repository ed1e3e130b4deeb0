package score

import (
	"strings"
	"time"

	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/model"
)

// Scorer computes the trust report from the fact population and graph state.
// It is pure: identical inputs yield an identical report modulo GeneratedAt.
type Scorer struct {
	cal Calibration
}

// NewScorer creates a scorer over a calibration artifact. A nil calibration
// uses the built-in one.
func NewScorer(cal Calibration) *Scorer {
	if cal == nil {
		cal = DefaultCalibration()
	}
	return &Scorer{cal: cal}
}

// Calculate produces the trust report. Ground truth is optional; without it
// completeness is estimated and phase accuracy is unknowable (scored 0, which
// the component data explains).
func (s *Scorer) Calculate(facts []*model.Fact, doc model.GraphDocument, store evidence.Store, gt *GroundTruth) model.TrustReport {
	components := []model.Component{
		s.traceability(doc, store),
		s.completeness(doc, store, gt),
		s.phaseAccuracy(doc, gt),
		s.antiHallucination(facts),
		s.resolutionCoverage(doc),
	}

	overall := 0.0
	for _, c := range components {
		overall += c.Score * c.Weight
	}

	report := model.TrustReport{
		OverallScore:       overall,
		Components:         components,
		TotalFacts:         len(facts),
		CalibrationVersion: s.cal.Version(),
		GeneratedAt:        time.Now().UTC(),
	}
	for _, f := range facts {
		switch f.Status {
		case model.StatusVerified:
			report.VerifiedFactCount++
		case model.StatusRejected:
			report.RejectedFactCount++
		case model.StatusUnverified:
			report.UnverifiedFactCount++
		}
	}
	return report
}

// traceability is the fraction of graph content (nodes and edges both count
// as facts) citing at least one evidence id the store knows.
func (s *Scorer) traceability(doc model.GraphDocument, store evidence.Store) model.Component {
	total := len(doc.Nodes) + len(doc.Edges)
	traceable := 0

	factMessages := make(map[string]bool) // fact id has known evidence
	for _, n := range doc.Nodes {
		ok := false
		for _, id := range n.Evidence {
			if store.Has(id) {
				ok = true
				break
			}
		}
		if ok {
			traceable++
		}
		for _, fid := range n.FactIDs {
			if ok {
				factMessages[fid] = true
			}
		}
	}
	// Edge evidence lists fact ids; an edge is traceable when any of its
	// facts landed on a traceable node.
	for _, e := range doc.Edges {
		for _, fid := range e.Evidence {
			if factMessages[fid] {
				traceable++
				break
			}
		}
	}

	score := 0.0
	if total > 0 {
		score = float64(traceable) / float64(total)
	}
	return model.Component{
		Name:   ComponentTraceability,
		Score:  score,
		Weight: s.cal.Weight(ComponentTraceability),
		Data: map[string]interface{}{
			"traceable": traceable,
			"total":     total,
			"formula":   "traceable_graph_facts / total_graph_facts",
		},
	}
}

func (s *Scorer) completeness(doc model.GraphDocument, store evidence.Store, gt *GroundTruth) model.Component {
	if gt == nil {
		score, data := estimateCompleteness(doc, store, s.cal.ExpectedFactsPerMessage())
		data["mode"] = "estimated"
		data["expected_per_message"] = s.cal.ExpectedFactsPerMessage()
		return model.Component{
			Name:   ComponentCompleteness,
			Score:  score,
			Weight: s.cal.Weight(ComponentCompleteness),
			Data:   data,
		}
	}

	gtFacts := gt.FactCount()
	matched := matchGroundTruthFacts(doc, gt)
	score := 0.0
	if gtFacts > 0 {
		score = float64(matched) / float64(gtFacts)
	}
	if score > 1 {
		score = 1
	}
	return model.Component{
		Name:   ComponentCompleteness,
		Score:  score,
		Weight: s.cal.Weight(ComponentCompleteness),
		Data: map[string]interface{}{
			"mode":               "ground_truth",
			"matched":            matched,
			"ground_truth_facts": gtFacts,
			"formula":            "matched_annotated_facts / total_annotated_facts",
		},
	}
}

func (s *Scorer) phaseAccuracy(doc model.GraphDocument, gt *GroundTruth) model.Component {
	weight := s.cal.Weight(ComponentPhaseAccuracy)
	if gt == nil {
		return model.Component{
			Name:   ComponentPhaseAccuracy,
			Score:  0,
			Weight: weight,
			Data: map[string]interface{}{
				"mode": "no_ground_truth",
				"note": "phase accuracy requires labeled annotations",
			},
		}
	}

	correct, total := 0, 0
	for _, n := range doc.Nodes {
		if n.Type != model.NodeProject {
			continue
		}
		gtProject, ok := findProject(gt, n.CanonicalName)
		if !ok || gtProject.Phase == "" {
			continue
		}
		total++
		if strings.EqualFold(n.Attributes["phase"], gtProject.Phase) {
			correct++
		}
	}

	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total)
	}
	return model.Component{
		Name:   ComponentPhaseAccuracy,
		Score:  score,
		Weight: weight,
		Data: map[string]interface{}{
			"mode":     "ground_truth",
			"correct":  correct,
			"projects": total,
			"formula":  "correct_phases / labeled_projects",
		},
	}
}

// antiHallucination rewards evidence-gated filtering: the fewer claims the
// verifier had to reject, the cleaner the extraction.
func (s *Scorer) antiHallucination(facts []*model.Fact) model.Component {
	verified, rejected := 0, 0
	for _, f := range facts {
		switch f.Status {
		case model.StatusVerified:
			verified++
		case model.StatusRejected:
			rejected++
		}
	}

	score := 1.0
	if verified+rejected > 0 {
		score = 1.0 - float64(rejected)/float64(verified+rejected)
	}
	return model.Component{
		Name:   ComponentAntiHallucination,
		Score:  score,
		Weight: s.cal.Weight(ComponentAntiHallucination),
		Data: map[string]interface{}{
			"verified": verified,
			"rejected": rejected,
			"formula":  "1 - rejected / (verified + rejected)",
		},
	}
}

// resolutionCoverage reports how many challenges have a resolution attached.
// Default calibration gives it zero weight; it still appears in the
// breakdown.
func (s *Scorer) resolutionCoverage(doc model.GraphDocument) model.Component {
	challenges := 0
	for _, n := range doc.Nodes {
		if n.Type == model.NodeChallenge {
			challenges++
		}
	}

	resolved := make(map[string]struct{})
	for _, e := range doc.Edges {
		if e.Type == model.EdgeResolvedBy && !e.Superseded {
			resolved[e.SourceID] = struct{}{}
		}
		if e.Type == model.EdgeResolves && !e.Superseded {
			resolved[e.TargetID] = struct{}{}
		}
	}

	score := 0.0
	if challenges > 0 {
		score = float64(len(resolved)) / float64(challenges)
		if score > 1 {
			score = 1
		}
	}
	return model.Component{
		Name:   ComponentResolutionCoverage,
		Score:  score,
		Weight: s.cal.Weight(ComponentResolutionCoverage),
		Data: map[string]interface{}{
			"challenges": challenges,
			"resolved":   len(resolved),
			"formula":    "resolved_challenges / total_challenges",
		},
	}
}

// matchGroundTruthFacts counts annotated facts present in the graph: each
// matched project counts once, plus its matched topics, challenges, and
// resolutions among neighbors of any type.
func matchGroundTruthFacts(doc model.GraphDocument, gt *GroundTruth) int {
	nodesByID := make(map[string]*model.Node, len(doc.Nodes))
	for _, n := range doc.Nodes {
		nodesByID[n.ID] = n
	}
	neighbors := make(map[string][]*model.Node)
	for _, e := range doc.Edges {
		if t, ok := nodesByID[e.TargetID]; ok {
			neighbors[e.SourceID] = append(neighbors[e.SourceID], t)
		}
	}

	matched := 0
	for _, gtProject := range gt.Projects {
		var project *model.Node
		for _, n := range doc.Nodes {
			if n.Type == model.NodeProject && namesOverlap(n.CanonicalName, gtProject.Name) {
				project = n
				break
			}
		}
		if project == nil {
			continue
		}
		matched++

		matched += countNameMatches(neighbors[project.ID], model.NodeTopic, gtProject.Topics)
		matched += countNameMatches(neighbors[project.ID], model.NodeChallenge, gtProject.Challenges)

		// Resolutions hang off challenges, not the project.
		var resolutions []*model.Node
		for _, ch := range neighbors[project.ID] {
			if ch.Type != model.NodeChallenge {
				continue
			}
			for _, r := range neighbors[ch.ID] {
				if r.Type == model.NodeResolution {
					resolutions = append(resolutions, r)
				}
			}
		}
		for _, r := range neighbors[project.ID] {
			if r.Type == model.NodeResolution {
				resolutions = append(resolutions, r)
			}
		}
		matched += countNameMatches(resolutions, model.NodeResolution, gtProject.Resolutions)
	}
	return matched
}

func countNameMatches(nodes []*model.Node, t model.NodeType, annotated []string) int {
	matched := 0
	for _, want := range annotated {
		for _, n := range nodes {
			if n.Type != t {
				continue
			}
			if namesOverlap(n.CanonicalName, want) || anyAliasOverlap(n, want) {
				matched++
				break
			}
		}
	}
	return matched
}

func findProject(gt *GroundTruth, name string) (GroundTruthProject, bool) {
	for _, p := range gt.Projects {
		if namesOverlap(name, p.Name) {
			return p, true
		}
	}
	return GroundTruthProject{}, false
}

func anyAliasOverlap(n *model.Node, want string) bool {
	for _, a := range n.Aliases {
		if namesOverlap(a, want) {
			return true
		}
	}
	return false
}

// namesOverlap is the loose containment match used against annotations.
func namesOverlap(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
