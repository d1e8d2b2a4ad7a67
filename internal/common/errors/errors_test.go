// internal/common/errors/errors_test.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ map[string]interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ map[string]interface{}) {
	l.warns = append(l.warns, msg)
}

func TestImportValidationError_LineAttribution(t *testing.T) {
	err := NewImportValidationError(4, "id must be numeric")

	assert.Equal(t, ErrCodeImportValidationFailed, err.Code)
	assert.Equal(t, "line 4: id must be numeric", err.Details)
	assert.Equal(t, 4, err.Metadata["line"])
	assert.False(t, err.Retryable)
}

func TestRemoteUnavailableError_Unwraps(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("bootstrap: %w", NewRemoteUnavailableError("GET /students", cause))

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, HasCode(err, ErrCodeRemoteUnavailable))
	assert.False(t, HasCode(err, ErrCodeCacheMiss))
	assert.True(t, IsRetryableErrorCode(ErrCodeRemoteUnavailable))
}

func TestGetErrorCategoryAndStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category string
		status   int
	}{
		{ErrCodeStudentNotFound, "not_found", http.StatusNotFound},
		{ErrCodeCommitteeNotFound, "not_found", http.StatusNotFound},
		{ErrCodeImportValidationFailed, "validation", http.StatusUnprocessableEntity},
		{ErrCodeEvaluationInvalid, "validation", http.StatusUnprocessableEntity},
		{ErrCodeBadRequest, "validation", http.StatusBadRequest},
		{ErrCodeRemoteUnavailable, "transport", http.StatusBadGateway},
		{ErrCodeRemoteRejected, "transport", http.StatusUnprocessableEntity},
		{ErrCodeCacheCorrupt, "cache", http.StatusInternalServerError},
		{ErrCodeArchiveWriteFailed, "storage", http.StatusInternalServerError},
		{ErrCodeInternal, "internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.category, GetErrorCategory(tt.code))
			assert.Equal(t, tt.status, HTTPStatus(tt.code))
		})
	}
}

func TestErrorHandler_WritesJSON(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/students/abc", nil)
	h.HandleHTTPError(rec, req, NewStudentNotFoundError("abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error StandardError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeStudentNotFound, body.Error.Code)
	assert.Len(t, log.warns, 1)
	assert.Empty(t, log.errors)
}

func TestErrorHandler_NormalizesPlainErrors(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/students/import", nil)
	h.HandleHTTPError(rec, req, stderrors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(ErrCodeInternal))
	assert.Len(t, log.errors, 1)
}
