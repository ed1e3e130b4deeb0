package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/factgraph/factgraph/internal/model"
)

// Example is one few-shot input/output pair included in the extraction
// prompt to anchor the output contract.
type Example struct {
	Input  string
	Output string
}

// DefaultExamples returns the built-in few-shot guidance.
func DefaultExamples() []Example {
	return []Example{
		{
			Input: `Message msg_101:
From: dana@client.example
Date: 2026-03-26
Subject: API access concerns
Body: We hit an issue: sharing a production API key with the vendor feels risky. Can we avoid that?`,
			Output: `{"facts":[{"claim_type":"challenge","text":"Client is concerned about sharing a production API key with the vendor","evidence":["msg_101"],"confidence":0.9,"quotes":[{"message_id":"msg_101","quote":"sharing a production API key with the vendor feels risky"}],"attributes":{"category":"technical"},"date":"2026-03-26"}]}`,
		},
		{
			Input: `Message msg_102:
From: lee@studio.example
Date: 2026-03-27
Subject: Re: API access concerns
Body: Agreed. We decided to go with the hosted option instead, so no key sharing is needed. Marta will own the deliverable handoff.`,
			Output: `{"facts":[{"claim_type":"decision","text":"Team decided to use the hosted option instead of direct API key sharing","evidence":["msg_102"],"confidence":0.95,"quotes":[{"message_id":"msg_102","quote":"We decided to go with the hosted option instead"}],"attributes":{"resolves":"API key sharing concern"},"date":"2026-03-27"},{"claim_type":"person","text":"Marta owns the deliverable handoff","evidence":["msg_102"],"confidence":0.85,"attributes":{"owns":"deliverable handoff"}}]}`,
		},
	}
}

// buildExtractionPrompt formats a project context and few-shot examples
// into the extraction prompt.
func buildExtractionPrompt(pc model.ProjectContext, msgs []model.Message, examples []Example) string {
	var b strings.Builder

	b.WriteString("Extract candidate facts from this correspondence for project \"")
	b.WriteString(pc.Name)
	b.WriteString("\".\n\n")

	b.WriteString(`Each fact is one claim with a type from: topic, challenge, resolution, person, deliverable, milestone, dependency, decision, risk.

CRITICAL RULES:
- Every fact MUST cite at least one message id from the messages below. Never cite any other id.
- If a fact appears in multiple messages, list all of their ids.
- Emit each distinct claim as a separate fact, in the order it appears in the messages.
- Be specific: "API integration for payment processing", not "API work".
- confidence in [0,1] reflects how directly the text states the claim; hedged language ("I think", "not sure") means lower confidence.
- For claims spanning multiple messages (e.g. a duration between two dated events), list each step under "hops" with its own evidence.
- Optional attributes per claim type: challenge {category: technical|budget|timeline|scope|communication}; resolution {resolves: <challenge text>}; decision {resolves: <challenge text>}; person {owns: <deliverable name>}; deliverable {owner: <person name>}; dependency {source, target}; risk {caused_by: <challenge text>, mitigated_by: <decision or resolution text>}.
- "date" is the ISO date the claim refers to, when stated.
- Also judge the project lifecycle phase from the correspondence: set top-level "project_phase" to one of scoping, execution, challenge_resolution, delivery, or unknown, and explain it in "phase_reasoning".

`)

	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d input:\n%s\n\nExample %d output:\n%s\n\n", i+1, ex.Input, i+1, ex.Output)
	}

	b.WriteString("Messages:\n\n")
	b.WriteString(formatMessages(msgs))

	b.WriteString("\nOutput ONLY a JSON object of the form {\"facts\": [...], \"project_phase\": \"...\", \"phase_reasoning\": \"...\"}, no additional text.\n")
	return b.String()
}

// buildCorrectivePrompt appends an error-specific instruction after a
// structural validation failure.
func buildCorrectivePrompt(base string, structuralErr error) string {
	return base + fmt.Sprintf(`
Your previous output failed structural validation:
  %s

Fix exactly this problem and output the corrected JSON object. Output ONLY the JSON.
`, structuralErr)
}

// formatMessages renders full message bodies; extraction sees the same text
// the verifier will re-fetch.
func formatMessages(msgs []model.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "Message %s:\nFrom: %s\nTo: %s\nDate: %s\nSubject: %s\nBody: %s\n\n",
			m.ID, m.Sender, strings.Join(m.Recipients, ", "),
			m.Timestamp.Format(time.RFC3339), m.Subject, m.Body)
	}
	return b.String()
}
