package tileset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema is the shape every fetched tileset document must have
// before we trust its numbers. Kept intentionally loose beyond the core
// fields; real-world documents carry vendor extensions.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["root"],
  "properties": {
    "root": { "$ref": "#/$defs/tile" }
  },
  "$defs": {
    "tile": {
      "type": "object",
      "required": ["boundingVolume", "geometricError"],
      "properties": {
        "boundingVolume": {
          "type": "object",
          "required": ["box"],
          "properties": {
            "box": {
              "type": "array",
              "items": { "type": "number" },
              "minItems": 12,
              "maxItems": 12
            }
          }
        },
        "geometricError": { "type": "number" },
        "refine": { "type": "string", "enum": ["ADD", "REPLACE", "add", "replace"] },
        "content": {
          "type": "object",
          "required": ["uri"],
          "properties": { "uri": { "type": "string" } }
        },
        "children": {
          "type": "array",
          "items": { "$ref": "#/$defs/tile" }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("tileset.schema.json", documentSchema)

// ValidateDocument checks raw document bytes against the tileset schema.
func ValidateDocument(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("tileset json: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		// The validator's multi-line output is too noisy for a per-tile log line.
		return fmt.Errorf("tileset schema: %s", firstLine(err.Error()))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
