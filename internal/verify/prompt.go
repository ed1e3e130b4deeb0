package verify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/factgraph/factgraph/internal/model"
)

// verdict is the judgment source's answer for one claim-vs-evidence check.
type verdict struct {
	Supported  bool    `json:"supported"`
	Confidence float64 `json:"confidence"`
	Reasoning  []struct {
		MessageID string `json:"message_id"`
		Quote     string `json:"quote"`
		Inference string `json:"inference"`
	} `json:"reasoning"`
	Contradiction string `json:"contradiction"`
}

// buildVerificationPrompt formats one claim and the FULL text of every
// cited message. No truncation: the verifier must see everything the claim
// rests on.
func buildVerificationPrompt(claim string, msgs []model.Message) string {
	var b strings.Builder

	b.WriteString("Verify whether the evidence supports the claim.\n\n")
	fmt.Fprintf(&b, "Claim: %s\n\nEvidence messages:\n\n", claim)

	for _, m := range msgs {
		fmt.Fprintf(&b, "Message %s:\nFrom: %s\nDate: %s\nSubject: %s\nBody: %s\n\n",
			m.ID, m.Sender, m.Timestamp.Format(time.RFC3339), m.Subject, m.Body)
	}

	b.WriteString(`Answer "supported": true only if the claim is directly stated or strongly implied by the evidence.
Answer "supported": false if the claim requires assumptions, is not supported, or is contradicted.
If any evidence contradicts the claim, describe it in "contradiction".
"reasoning" must quote the evidence, step by step, with the message id each quote came from.
"confidence" in [0,1] is how strongly the evidence supports the claim.

Output JSON: {"supported": true|false, "confidence": 0.0, "reasoning": [{"message_id": "...", "quote": "...", "inference": "..."}], "contradiction": ""}

Output ONLY the JSON, no additional text.
`)
	return b.String()
}

// parseVerdict decodes the judgment output, repairing fenced or malformed
// JSON. A parse failure is a transient failure of the judgment source and
// counts as a failed attempt.
func parseVerdict(text string) (*verdict, error) {
	raw := strings.TrimSpace(text)
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		raw = raw[idx+len("```json"):]
	} else if idx := strings.Index(raw, "```"); idx >= 0 {
		raw = raw[idx+3:]
	}
	if idx := strings.LastIndex(raw, "```"); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimSpace(raw)

	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		repaired, repErr := jsonrepair.JSONRepair(raw)
		if repErr != nil {
			return nil, fmt.Errorf("verdict is not valid JSON: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return nil, fmt.Errorf("verdict is not valid JSON after repair: %v", err)
		}
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return nil, fmt.Errorf("verdict confidence %v out of range", v.Confidence)
	}
	return &v, nil
}

func (v *verdict) trace() []model.ReasoningStep {
	steps := make([]model.ReasoningStep, 0, len(v.Reasoning))
	for _, r := range v.Reasoning {
		steps = append(steps, model.ReasoningStep{
			MessageID: r.MessageID,
			Quote:     r.Quote,
			Inference: r.Inference,
		})
	}
	return steps
}
