package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/kaptinlin/jsonschema"
)

// candidateBatchSchema is the structural contract the judgment source must
// satisfy. Violations drive the corrective-retry loop.
const candidateBatchSchema = `{
  "type": "object",
  "required": ["facts"],
  "properties": {
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["claim_type", "text", "evidence", "confidence"],
        "properties": {
          "claim_type": {
            "type": "string",
            "enum": ["topic", "challenge", "resolution", "person", "deliverable", "milestone", "dependency", "decision", "risk"]
          },
          "text": {"type": "string", "minLength": 1},
          "evidence": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string"}
          },
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "quotes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["message_id", "quote"],
              "properties": {
                "message_id": {"type": "string"},
                "quote": {"type": "string"}
              }
            }
          },
          "hops": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["statement", "evidence"],
              "properties": {
                "statement": {"type": "string"},
                "evidence": {"type": "array", "minItems": 1, "items": {"type": "string"}}
              }
            }
          },
          "attributes": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          },
          "date": {"type": "string"}
        }
      }
    },
    "project_phase": {
      "type": "string",
      "enum": ["scoping", "execution", "challenge_resolution", "delivery", "unknown"]
    },
    "phase_reasoning": {"type": "string"}
  }
}`

type candidateQuote struct {
	MessageID string `json:"message_id"`
	Quote     string `json:"quote"`
}

type candidateHop struct {
	Statement string   `json:"statement"`
	Evidence  []string `json:"evidence"`
}

type candidate struct {
	ClaimType  string            `json:"claim_type"`
	Text       string            `json:"text"`
	Evidence   []string          `json:"evidence"`
	Confidence float64           `json:"confidence"`
	Quotes     []candidateQuote  `json:"quotes,omitempty"`
	Hops       []candidateHop    `json:"hops,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Date       string            `json:"date,omitempty"`
}

type candidateBatch struct {
	Facts          []candidate `json:"facts"`
	ProjectPhase   string      `json:"project_phase,omitempty"`
	PhaseReasoning string      `json:"phase_reasoning,omitempty"`
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func batchSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile([]byte(candidateBatchSchema))
	})
	return compiledSchema, schemaErr
}

// decodeBatch parses judgment-source output into a candidate batch. The
// text may be fenced or lightly malformed; it is repaired before schema
// validation. A returned error is a structural failure to feed back into
// the corrective retry.
func decodeBatch(text string) (*candidateBatch, error) {
	raw := stripFences(text)

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		repaired, repErr := jsonrepair.JSONRepair(raw)
		if repErr != nil {
			return nil, fmt.Errorf("output is not valid JSON: %v", err)
		}
		raw = repaired
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			return nil, fmt.Errorf("output is not valid JSON after repair: %v", err)
		}
	}

	schema, err := batchSchema()
	if err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}

	result := schema.Validate(generic)
	if !result.IsValid() {
		return nil, fmt.Errorf("schema violation: %s", formatSchemaErrors(result))
	}

	var batch candidateBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %v", err)
	}
	return &batch, nil
}

func formatSchemaErrors(result *jsonschema.EvaluationResult) string {
	fields := make([]string, 0, len(result.Errors))
	for field := range result.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, result.Errors[field].Message))
	}
	return strings.Join(parts, "; ")
}

// stripFences removes markdown code fences around JSON output.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		trimmed = trimmed[idx+len("```json"):]
	} else if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
