package score

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Component names used in the trust report breakdown.
const (
	ComponentTraceability       = "fact_traceability"
	ComponentCompleteness       = "extraction_completeness"
	ComponentPhaseAccuracy      = "phase_accuracy"
	ComponentAntiHallucination  = "anti_hallucination"
	ComponentResolutionCoverage = "resolution_coverage"
)

// Calibration supplies the externally trained weights and the expected-density
// estimator parameters. Re-calibration ships a new artifact file; the scorer
// code never changes.
type Calibration interface {
	Version() string
	Weight(component string) float64
	ExpectedFactsPerMessage() float64
}

type calibration struct {
	version string
	weights map[string]float64
	density float64
}

func (c *calibration) Version() string { return c.version }

func (c *calibration) Weight(component string) float64 {
	return c.weights[component]
}

func (c *calibration) ExpectedFactsPerMessage() float64 { return c.density }

// DefaultCalibration returns the built-in artifact used when no file is
// configured.
func DefaultCalibration() Calibration {
	return &calibration{
		version: "builtin-v1",
		weights: map[string]float64{
			ComponentTraceability:       0.35,
			ComponentCompleteness:       0.25,
			ComponentPhaseAccuracy:      0.20,
			ComponentAntiHallucination:  0.20,
			ComponentResolutionCoverage: 0,
		},
		density: 4.0,
	}
}

// calibrationFile is the on-disk artifact format.
type calibrationFile struct {
	Version                 string             `yaml:"version"`
	Weights                 map[string]float64 `yaml:"weights"`
	ExpectedFactsPerMessage float64            `yaml:"expected_facts_per_message"`
}

// LoadCalibration reads a versioned calibration artifact from a YAML file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration artifact: %w", err)
	}

	var file calibrationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse calibration artifact %s: %w", path, err)
	}
	if file.Version == "" {
		return nil, fmt.Errorf("calibration artifact %s: missing version", path)
	}
	if len(file.Weights) == 0 {
		return nil, fmt.Errorf("calibration artifact %s: no weights", path)
	}

	sum := 0.0
	for name, w := range file.Weights {
		if w < 0 {
			return nil, fmt.Errorf("calibration artifact %s: negative weight for %s", path, name)
		}
		sum += w
	}
	if sum <= 0 || sum > 1.0001 {
		return nil, fmt.Errorf("calibration artifact %s: weights sum to %.4f, want (0, 1]", path, sum)
	}

	density := file.ExpectedFactsPerMessage
	if density <= 0 {
		density = 4.0
	}
	return &calibration{version: file.Version, weights: file.Weights, density: density}, nil
}
