package bundle

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ontask/engine/pkg/models"
)

// documentSchema is the JSON Schema every (patched) bundle must satisfy
// before it is mapped onto the typed document.
const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["version", "name", "columns", "data_frame"],
	"properties": {
		"version": {"type": "integer"},
		"name": {"type": "string", "minLength": 1},
		"description_text": {"type": "string"},
		"attributes": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"nrows": {"type": "integer", "minimum": 0},
		"ncols": {"type": "integer", "minimum": 0},
		"data_frame": {"type": "string"},
		"columns": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "data_type"],
				"properties": {
					"name": {"type": "string", "minLength": 1, "maxLength": 63},
					"data_type": {
						"enum": ["string", "integer", "double", "boolean", "datetime"]
					},
					"is_key": {"type": "boolean"},
					"position": {"type": "integer", "minimum": 0},
					"categories": {"type": "array"}
				}
			}
		},
		"actions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "action_type"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"action_type": {"type": "string"},
					"text_content": {"type": "string"},
					"target_url": {"type": "string"},
					"conditions": {"type": "array"},
					"column_condition_pairs": {"type": "array"},
					"rubric_cells": {"type": "array"}
				}
			}
		},
		"views": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"columns": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// validateDocument checks the patched document against the bundle schema.
func validateDocument(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to validate bundle: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return fmt.Errorf("%w: %s", models.ErrImportSchema, strings.Join(messages, "; "))
}
