package score

import (
	"encoding/json"
	"fmt"
	"os"
)

// GroundTruth holds human-labeled annotations used in evaluation mode. When
// present, completeness and phase accuracy are measured against it instead
// of estimated.
type GroundTruth struct {
	Projects map[string]GroundTruthProject `json:"projects"`
}

// GroundTruthProject is one annotated project.
type GroundTruthProject struct {
	Name        string   `json:"project_name"`
	Type        string   `json:"project_type,omitempty"`
	Phase       string   `json:"phase,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Challenges  []string `json:"challenges,omitempty"`
	Resolutions []string `json:"resolutions,omitempty"`
}

// FactCount returns the number of annotated facts: each project plus its
// topics, challenges, and resolutions.
func (g *GroundTruth) FactCount() int {
	total := 0
	for _, p := range g.Projects {
		total += 1 + len(p.Topics) + len(p.Challenges) + len(p.Resolutions)
	}
	return total
}

// LoadGroundTruth reads annotations from a JSON file.
func LoadGroundTruth(path string) (*GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	var gt GroundTruth
	if err := json.Unmarshal(data, &gt); err != nil {
		return nil, fmt.Errorf("parse ground truth %s: %w", path, err)
	}
	if len(gt.Projects) == 0 {
		return nil, fmt.Errorf("ground truth %s: no projects", path)
	}
	return &gt, nil
}
