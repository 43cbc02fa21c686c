package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"info_arena/internal/domain"
)

// actionsSchema constrains the decision service's raw output before any of it
// is unmarshaled into typed actions. Shape errors surface here with a schema
// path instead of a zero-valued struct deep in the engine.
const actionsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["actions"],
  "additionalProperties": false,
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind"],
        "properties": {
          "kind": {
            "enum": ["send_message", "broadcast", "transfer_information", "submit_task", "submit_report"]
          },
          "to": {"type": "string"},
          "content": {"type": "string"},
          "pieces": {"type": "array", "items": {"type": "string"}},
          "values": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 100}},
          "task_id": {"type": "string"},
          "answer": {"type": "string"},
          "narrative": {"type": "string"},
          "scores": {
            "type": "object",
            "additionalProperties": {"type": "integer", "minimum": 1, "maximum": 10}
          }
        }
      }
    }
  }
}`

var compiledActionsSchema = jsonschema.MustCompileString("actions.schema.json", actionsSchema)

type actionsEnvelope struct {
	Actions []domain.Action `json:"actions"`
}

// ParseActions validates raw decider output against the schema and decodes
// it. Markdown fences around the JSON are tolerated.
func ParseActions(raw []byte) ([]domain.Action, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, fmt.Errorf("decode actions json: %w", err)
	}
	if err := compiledActionsSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("actions schema: %w", err)
	}
	var envelope actionsEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, fmt.Errorf("decode actions envelope: %w", err)
	}
	return envelope.Actions, nil
}
