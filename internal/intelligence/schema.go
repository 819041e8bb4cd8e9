package intelligence

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Response schemas (draft 2020-12 subset) validated at the adapter boundary.
// They pin the fields the pipeline reads; anything extra the model volunteers
// is allowed through and kept in the raw payload.

func ClassificationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string", "minLength": 1},
			"visa_category": map[string]any{"type": []string{"string", "null"}},
			"confidence":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"summary":       map[string]any{"type": "string"},
		},
		"required": []string{"document_type"},
	}
}

func AnalysisSchema() map[string]any {
	score := map[string]any{"type": "integer", "minimum": 0, "maximum": 100}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_correct_type":    map[string]any{"type": "boolean"},
			"completeness_score": score,
			"confidence_score":   map[string]any{"type": []string{"integer", "null"}, "minimum": 0, "maximum": 100},
			"field_confidence": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "integer"},
			},
			"extracted_data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"names":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"dates":             map[string]any{"type": "object"},
					"reference_numbers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			"findings":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"missing_elements":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"compliance_status": map[string]any{"type": "string"},
			"summary":           map[string]any{"type": "string"},
		},
		"required": []string{"completeness_score"},
	}
}

func OCRSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"transcribed_text": map[string]any{"type": "string"},
			"ocr_confidence":   map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
			"quality_issues":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"text_clarity":     map[string]any{"type": "string"},
		},
		"required": []string{"transcribed_text"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ClampScore forces a score into [0,100]; noisy models occasionally overshoot.
func ClampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
