// Package errors provides the standardized error type used across the
// queue service and its HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeStudentNotFound   ErrorCode = "STUDENT_NOT_FOUND"
	ErrCodeCommitteeNotFound ErrorCode = "COMMITTEE_NOT_FOUND"

	ErrCodeImportValidationFailed ErrorCode = "IMPORT_VALIDATION_FAILED"
	ErrCodeEvaluationInvalid      ErrorCode = "EVALUATION_INVALID"
	ErrCodeBadRequest             ErrorCode = "BAD_REQUEST"

	ErrCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrCodeRemoteRejected    ErrorCode = "REMOTE_REJECTED"

	ErrCodeCacheMiss    ErrorCode = "CACHE_MISS"
	ErrCodeCacheCorrupt ErrorCode = "CACHE_CORRUPT"

	ErrCodeArchiveWriteFailed ErrorCode = "ARCHIVE_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches one metadata entry and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewStudentNotFoundError creates a non-retryable lookup error.
func NewStudentNotFoundError(studentID string) *StandardError {
	return newError(ErrCodeStudentNotFound, "Student not found",
		fmt.Sprintf("studentId: %s", studentID), false, nil)
}

// NewCommitteeNotFoundError creates a non-retryable lookup error.
func NewCommitteeNotFoundError(committeeID string) *StandardError {
	return newError(ErrCodeCommitteeNotFound, "Committee not found",
		fmt.Sprintf("committeeId: %s", committeeID), false, nil)
}

// NewImportValidationError reports a bad import row. line is 1-based and
// counts the header; 0 means the error is not tied to a row.
func NewImportValidationError(line int, details string) *StandardError {
	msg := "Import validation failed"
	if line > 0 {
		details = fmt.Sprintf("line %d: %s", line, details)
	}
	return newError(ErrCodeImportValidationFailed, msg, details, false, nil).
		WithMetadata("line", line)
}

// NewEvaluationInvalidError reports scores that break the rubric.
func NewEvaluationInvalidError(details string) *StandardError {
	return newError(ErrCodeEvaluationInvalid, "Evaluation does not match the criteria", details, false, nil)
}

func NewBadRequestError(details string) *StandardError {
	return newError(ErrCodeBadRequest, "Malformed request", details, false, nil)
}

// NewRemoteUnavailableError wraps a transport failure or a 5xx response.
func NewRemoteUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeRemoteUnavailable, "Remote API unavailable",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

// NewRemoteRejectedError carries the human-readable message of a 4xx reply.
func NewRemoteRejectedError(operation string, status int, message string) *StandardError {
	return newError(ErrCodeRemoteRejected, message,
		fmt.Sprintf("operation: %s, status: %d", operation, status), false, nil).
		WithMetadata("status", status)
}

func NewCacheMissError(key string) *StandardError {
	return newError(ErrCodeCacheMiss, "No cached data", fmt.Sprintf("key: %s", key), false, nil)
}

func NewCacheCorruptError(key string, err error) *StandardError {
	return newError(ErrCodeCacheCorrupt, "Cached data is not valid",
		fmt.Sprintf("key: %s, error: %v", key, err), false, err)
}

func NewArchiveWriteFailedError(err error) *StandardError {
	return newError(ErrCodeArchiveWriteFailed, "Evaluation archive write failed", err.Error(), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeRemoteUnavailable, ErrCodeArchiveWriteFailed:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case strings.HasSuffix(c, "_NOT_FOUND"):
		return "not_found"
	case strings.HasPrefix(c, "IMPORT_"), code == ErrCodeEvaluationInvalid, code == ErrCodeBadRequest:
		return "validation"
	case strings.HasPrefix(c, "REMOTE_"):
		return "transport"
	case strings.HasPrefix(c, "CACHE_"):
		return "cache"
	case strings.HasPrefix(c, "ARCHIVE_"):
		return "storage"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error code to the status the query API replies with.
func HTTPStatus(code ErrorCode) int {
	switch GetErrorCategory(code) {
	case "not_found":
		return http.StatusNotFound
	case "validation":
		if code == ErrCodeBadRequest {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case "transport":
		if code == ErrCodeRemoteRejected {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
