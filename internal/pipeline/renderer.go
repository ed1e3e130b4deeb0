package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Renderer writes the run artifacts: graph document, trust report, and the
// rejected/unverified audit log.
type Renderer struct {
	verbose bool
}

// NewRenderer creates a renderer.
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{verbose: verbose}
}

// Render writes all artifacts for a run into dir and prints the summary.
func (r *Renderer) Render(result *RunResult, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	graphPath := filepath.Join(dir, "graph.json")
	if err := r.writeJSON(graphPath, result.Graph); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	if r.verbose {
		fmt.Printf("✓ Wrote graph: %s\n", graphPath)
	}

	reportPath := filepath.Join(dir, "trust_report.json")
	if err := r.writeJSON(reportPath, result.Report); err != nil {
		return fmt.Errorf("write trust report: %w", err)
	}
	if r.verbose {
		fmt.Printf("✓ Wrote trust report: %s\n", reportPath)
	}

	auditPath := filepath.Join(dir, "audit.jsonl")
	if err := result.Audit.WriteFile(auditPath); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	if r.verbose {
		fmt.Printf("✓ Wrote audit log: %s\n", auditPath)
	}

	r.RenderSummary(result)
	return nil
}

// RenderSummary prints the run summary to stdout.
func (r *Renderer) RenderSummary(result *RunResult) {
	rep := result.Report
	fmt.Printf("\nTrust score: %.3f (calibration %s)\n", rep.OverallScore, rep.CalibrationVersion)
	for _, c := range rep.Components {
		fmt.Printf("  %-24s %.3f (weight %.2f)\n", c.Name, c.Score, c.Weight)
	}
	fmt.Printf("\nFacts: %d total, %d verified, %d rejected, %d unverified\n",
		rep.TotalFacts, rep.VerifiedFactCount, rep.RejectedFactCount, rep.UnverifiedFactCount)
	fmt.Printf("Graph: %d nodes, %d edges", result.Graph.Stats.TotalNodes, result.Graph.Stats.TotalEdges)
	if n := len(result.Graph.Warnings); n > 0 {
		fmt.Printf(", %d integrity warnings", n)
	}
	fmt.Println()
	if len(result.Failed) > 0 {
		fmt.Printf("\n%d context(s) failed:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  ✗ %s: %v\n", f.ContextID, f.Err)
		}
	}
}

func (r *Renderer) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
