package yamlio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// scenarioSchema is the structural contract imported documents are checked
// against before conversion. It stays loose on config payload internals;
// the typed decode owns those.
const scenarioSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "priority": {"enum": ["low", "medium", "high"]},
    "baseUrl": {"type": "string"},
    "variables": {"type": "object"},
    "preScript": {"type": "string"},
    "postScript": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "enabled": {"type": "boolean"},
          "request": {
            "type": "object",
            "required": ["method", "url"],
            "properties": {
              "method": {"enum": ["GET", "POST", "PUT", "DELETE", "PATCH"]},
              "url": {"type": "string"}
            }
          },
          "delay": {
            "type": "object",
            "required": ["duration"],
            "properties": {"duration": {"type": "integer", "minimum": 0}}
          },
          "script": {
            "type": "object",
            "required": ["code"],
            "properties": {"code": {"type": "string"}}
          },
          "condition": {"type": "object"},
          "loop": {"type": "object"},
          "extract": {"type": "array"},
          "assertions": {"type": "array"},
          "with_items_from_csv": {
            "type": "object",
            "required": ["file"],
            "properties": {"file": {"type": "string", "minLength": 1}}
          }
        }
      }
    }
  }
}`

var compiledScenarioSchema = jsonschema.MustCompileString("scenario.schema.json", scenarioSchema)

// validateScenarioDoc checks a decoded document against the scenario
// schema and rewrites validation failures into short diagnostics.
func validateScenarioDoc(doc *ScenarioDoc) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding scenario for validation: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return fmt.Errorf("decoding scenario for validation: %w", err)
	}

	if err := compiledScenarioSchema.Validate(generic); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("scenario document invalid: %s", flattenValidationError(ve))
		}
		return fmt.Errorf("scenario document invalid: %w", err)
	}
	return nil
}

// flattenValidationError picks the deepest cause so the diagnostic names
// the offending field instead of the document root.
func flattenValidationError(ve *jsonschema.ValidationError) string {
	deepest := ve
	for len(deepest.Causes) > 0 {
		deepest = deepest.Causes[0]
	}
	location := deepest.InstanceLocation
	if location == "" {
		location = "/"
	}
	return strings.TrimSpace(fmt.Sprintf("%s: %s", location, deepest.Message))
}
