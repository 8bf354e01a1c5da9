package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"adgenius/internal/domain"
	"adgenius/internal/providers/prompt"
)

// responseSchema is the OpenAPI subset Gemini accepts as responseSchema.
type responseSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]*responseSchema `json:"properties,omitempty"`
	Required   []string                   `json:"required,omitempty"`
}

func newResponseSchema(s domain.OutputSchema) *responseSchema {
	props := make(map[string]*responseSchema, len(s.Required))
	for _, field := range s.Required {
		props[field] = &responseSchema{Type: "STRING"}
	}
	return &responseSchema{Type: "OBJECT", Properties: props, Required: append([]string(nil), s.Required...)}
}

// jsonSchema mirrors the output schema as a JSON Schema document. Required
// strings must also be non-blank.
func jsonSchema(s domain.OutputSchema) map[string]any {
	props := make(map[string]any, len(s.Required))
	required := make([]any, 0, len(s.Required))
	for _, field := range s.Required {
		props[field] = map[string]any{"type": "string", "pattern": `\S`}
		required = append(required, field)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// validateStructured extracts the JSON object from raw model output and
// checks it against the schema.
func validateStructured(raw string, s domain.OutputSchema) (string, error) {
	fragment := prompt.ExtractJSON(raw)
	if fragment == "" {
		return "", errors.New("empty structured payload")
	}
	var doc any
	if err := json.Unmarshal([]byte(fragment), &doc); err != nil {
		return "", fmt.Errorf("decode structured payload: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(jsonSchema(s)), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return "", fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return "", fmt.Errorf("%s payload failed validation: %s", schemaName(s), strings.Join(errs, "; "))
	}
	return fragment, nil
}

func schemaName(s domain.OutputSchema) string {
	if s.Name != "" {
		return s.Name
	}
	return "structured"
}
