// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"
	"strings"

	"exam-queue/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema for one collection.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal; it panics on a malformed schema,
// which only happens on a programming error.
func MustCompile(name, source string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

func (s *Schema) Name() string { return s.name }

// ValidateDocument checks raw JSON against the schema. A document that is
// not JSON at all is returned as an error; structural problems are reported
// in the result.
func (s *Schema) ValidateDocument(doc []byte) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateEvaluation checks every score against the rubric: the criterion
// must exist and the score must lie in [0, maxScore].
func ValidateEvaluation(ev models.Evaluation, criteria []models.Criterion) *ValidationResult {
	byID := make(map[int]models.Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}

	ids := make([]int, 0, len(ev.Scores))
	for id := range ev.Scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	errs := []ValidationError{}
	for _, id := range ids {
		score := ev.Scores[id]
		field := fmt.Sprintf("scores.%d", id)
		c, ok := byID[id]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "unknown criterion",
				Code:    "UNKNOWN_CRITERION",
			})
			continue
		}
		if score < 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "value must be >= 0",
				Code:    "MINIMUM_VIOLATION",
			})
		}
		if score > c.MaxScore {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("value must be <= %g", c.MaxScore),
				Code:    "MAXIMUM_VIOLATION",
			})
		}
	}

	return &ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Summary joins all messages into one line.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
