package extract

import "strings"

// hedgePhrases lower extraction confidence: a claim whose cited evidence is
// hedged is lexically weaker regardless of what the judgment source said.
var hedgePhrases = []string{
	"i think", "i believe", "i guess", "not sure", "unsure",
	"maybe", "perhaps", "possibly", "might be", "could be",
	"if i recall", "i assume", "presumably",
}

// hedgeCap is the ceiling for confidence when the evidence is hedged.
const hedgeCap = 0.45

// Hedged reports whether any of the texts contains hedge language.
func Hedged(texts ...string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, phrase := range hedgePhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	return false
}

// DampenConfidence applies the hedge penalty to an extraction confidence.
// Hedged evidence halves the confidence and caps it below 0.5.
func DampenConfidence(confidence float64, evidenceBodies []string) float64 {
	if !Hedged(evidenceBodies...) {
		return confidence
	}
	damped := confidence * 0.5
	if damped > hedgeCap {
		damped = hedgeCap
	}
	return damped
}
