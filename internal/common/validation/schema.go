package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/validate_request.json
var defaultRequestSchema []byte

// DefaultRequestSchema returns the embedded ValidateRequest schema.
func DefaultRequestSchema() []byte {
	out := make([]byte, len(defaultRequestSchema))
	copy(out, defaultRequestSchema)
	return out
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// GetErrorMessages flattens the errors as "field: message".
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

// HasErrors reports whether a field has at least one error.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// SchemaValidator checks request documents against a compiled JSON schema. It is safe for
// concurrent use.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles a JSON schema document.
func NewSchemaValidator(schemaJSON []byte) (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// LoadSchemaValidator compiles the schema at path, or the embedded default when path is empty.
func LoadSchemaValidator(path string) (*SchemaValidator, error) {
	if path == "" {
		return NewSchemaValidator(defaultRequestSchema)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return NewSchemaValidator(data)
}

// ValidateBytes validates a raw JSON document. A document that is not exactly one JSON value
// yields a single error on the "(root)" field with code "INVALID_JSON".
func (v *SchemaValidator) ValidateBytes(document []byte) *ValidationResult {
	// The bytes loader stops after the first value, so trailing data must be caught here.
	if !json.Valid(document) {
		return invalidJSON("document is not a single valid JSON value")
	}
	return v.validate(gojsonschema.NewBytesLoader(document))
}

// ValidateInput validates an already decoded document, such as Zeebe job variables.
func (v *SchemaValidator) ValidateInput(input map[string]interface{}) *ValidationResult {
	return v.validate(gojsonschema.NewGoLoader(input))
}

func (v *SchemaValidator) validate(document gojsonschema.JSONLoader) *ValidationResult {
	result, err := v.schema.Validate(document)
	if err != nil {
		return invalidJSON(err.Error())
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		// gojsonschema reports a missing required property against its parent.
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = strings.TrimPrefix(field+"."+prop, "(root).")
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}

func invalidJSON(message string) *ValidationResult {
	return &ValidationResult{
		Valid: false,
		Errors: []ValidationError{{
			Field:   "(root)",
			Message: message,
			Code:    "INVALID_JSON",
		}},
	}
}
