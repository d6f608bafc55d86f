// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// discoveryRequestSchema guards the run-submission API boundary.
const discoveryRequestSchema = `{
	"type": "object",
	"properties": {
		"anchorId":       {"type": "string", "minLength": 1},
		"countryCode":    {"type": "string", "minLength": 2, "maxLength": 2},
		"candidateIds":   {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
		"retainFraction": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
		"deadlineMs":     {"type": "integer", "minimum": 0}
	},
	"required": ["anchorId", "countryCode", "candidateIds"],
	"additionalProperties": false
}`

// feedbackSchema guards the outcome-feedback API boundary.
const feedbackSchema = `{
	"type": "object",
	"properties": {
		"runId":       {"type": "string", "minLength": 1},
		"candidateId": {"type": "string", "minLength": 1},
		"success":     {"type": "boolean"},
		"observedAt":  {"type": "string", "format": "date-time"}
	},
	"required": ["runId", "candidateId", "success", "observedAt"],
	"additionalProperties": false
}`

var (
	discoveryRequestLoader = gojsonschema.NewStringLoader(discoveryRequestSchema)
	feedbackLoader         = gojsonschema.NewStringLoader(feedbackSchema)
)

// ValidateDiscoveryRequest validates a raw run-submission payload.
func ValidateDiscoveryRequest(payload []byte) error {
	return validate(discoveryRequestLoader, payload)
}

// ValidateFeedback validates a raw outcome-feedback payload.
func ValidateFeedback(payload []byte) error {
	return validate(feedbackLoader, payload)
}

func validate(schema gojsonschema.JSONLoader, payload []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	return fmt.Errorf("payload invalid: %s", strings.Join(messages, "; "))
}
