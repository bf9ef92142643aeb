package validation

import (
	"fmt"
	"sync"

	apperrors "driving-school-api/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult is the outcome of validating a JSON document.
type ValidationResult struct {
	Valid  bool                   `json:"valid"`
	Errors []apperrors.FieldError `json:"errors,omitempty"`
}

// WebhookPayloadSchema describes the body providers POST to /payment-webhook.
const WebhookPayloadSchema = `{
	"type": "object",
	"required": ["reference", "status"],
	"properties": {
		"reference":     {"type": "string", "minLength": 1, "maxLength": 64},
		"status":        {"type": "string", "enum": ["success", "failed", "pending"]},
		"transactionId": {"type": "string", "maxLength": 128}
	}
}`

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(schema string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schema string) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

var (
	webhookOnce   sync.Once
	webhookSchema *Schema
)

// WebhookSchema returns the compiled webhook payload schema.
func WebhookSchema() *Schema {
	webhookOnce.Do(func() {
		webhookSchema = MustCompile(WebhookPayloadSchema)
	})
	return webhookSchema
}

// Validate checks document against the schema. A document that is not JSON
// at all is reported as a single "body" error.
func (s *Schema) Validate(document []byte) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []apperrors.FieldError{{Field: "body", Message: "must be a JSON object", Code: "invalid_json"}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]apperrors.FieldError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if re.Type() == "required" {
			if prop, ok := re.Details()["property"].(string); ok {
				field = prop
			}
		}
		errs = append(errs, apperrors.FieldError{
			Field:   field,
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}

// AsError converts a failed result into a ValidationError.
func (r *ValidationResult) AsError(details string) error {
	if r.Valid {
		return nil
	}
	return apperrors.NewValidationError(details, r.Errors...)
}
