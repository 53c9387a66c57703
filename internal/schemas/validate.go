// Package schemas validates model-produced JSON against the embedded
// artifact schemas. Producers refuse to append an artifact that does not
// conform, so downstream stages can trust the shapes they read.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError carries the per-field failures from one validation.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single validation failure at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError means the schema itself could not be loaded or parsed.
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateJSONString validates a JSON document against a schema, both
// given as strings. A broken schema is a *SchemaLoadError; a document
// that fails to parse or conform is a *ValidationError, so callers can
// tell an internal defect from bad model output.
func ValidateJSONString(schemaContent, jsonContent string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return &SchemaLoadError{
			Name:    "(string schema)",
			Message: "schema failed to compile",
			Cause:   err,
		}
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return &ValidationError{
			Errors: []FieldError{{Field: "(root)", Message: fmt.Sprintf("document is not valid JSON: %v", err)}},
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
