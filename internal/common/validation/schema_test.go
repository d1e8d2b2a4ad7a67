// internal/common/validation/schema_test.go
package validation

import (
	"encoding/json"
	"testing"

	"exam-queue/internal/models"
	"exam-queue/internal/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionSchemas_AcceptSeed(t *testing.T) {
	ds := seed.Dataset()
	docs := map[*Schema]interface{}{
		StudentsSchema:   ds.Students,
		CommitteesSchema: ds.Committees,
		CriteriaSchema:   ds.Criteria,
	}
	for schema, value := range docs {
		raw, err := json.Marshal(value)
		require.NoError(t, err)

		result, err := schema.ValidateDocument(raw)
		require.NoError(t, err)
		assert.True(t, result.Valid, "%s: %v", schema.Name(), result.GetErrorMessages())
	}
}

func TestStudentsSchema_RejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown status", doc: `[{"id":1,"name":"a","committeeId":1,"status":"DONE","queuePosition":1}]`},
		{name: "missing id", doc: `[{"name":"a","committeeId":1,"status":"WAITING","queuePosition":1}]`},
		{name: "zero id", doc: `[{"id":0,"name":"a","committeeId":1,"status":"WAITING","queuePosition":1}]`},
		{name: "not an array", doc: `{"id":1}`},
		{name: "non numeric score key", doc: `[{"id":1,"name":"a","committeeId":1,"status":"COMPLETED","queuePosition":0,"evaluation":{"scores":{"x":1}}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := StudentsSchema.ValidateDocument([]byte(tt.doc))
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.NotEmpty(t, result.Summary())
		})
	}
}

func TestValidateDocument_NotJSON(t *testing.T) {
	_, err := CriteriaSchema.ValidateDocument([]byte("{not json"))
	assert.Error(t, err)
}

func TestCriteriaSchema_RejectsZeroMaxScore(t *testing.T) {
	result, err := CriteriaSchema.ValidateDocument([]byte(`[{"id":1,"name":"c","maxScore":0}]`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidateEvaluation(t *testing.T) {
	criteria := seed.Criteria()

	tests := []struct {
		name      string
		scores    map[int]float64
		valid     bool
		badFields []string
	}{
		{name: "within range", scores: map[int]float64{1: 18, 2: 0, 3: 20}, valid: true},
		{name: "empty scores", scores: nil, valid: true},
		{name: "above max", scores: map[int]float64{1: 21}, badFields: []string{"scores.1"}},
		{name: "negative", scores: map[int]float64{2: -1}, badFields: []string{"scores.2"}},
		{name: "unknown criterion", scores: map[int]float64{9: 1, 1: 5}, badFields: []string{"scores.9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateEvaluation(models.Evaluation{Scores: tt.scores}, criteria)
			assert.Equal(t, tt.valid, result.Valid)
			for _, f := range tt.badFields {
				assert.True(t, result.HasErrors(f), f)
			}
			assert.Len(t, result.Errors, len(tt.badFields))
		})
	}
}
