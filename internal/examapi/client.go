// internal/examapi/client.go
package examapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "exam-queue/internal/common/errors"
	apphttp "exam-queue/internal/common/http"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/common/validation"
	"exam-queue/internal/models"
)

var (
	ErrRemoteUnavailable = errors.New("remote API unavailable")
	ErrRemoteRejected    = errors.New("remote API rejected the request")
	ErrInvalidPayload    = errors.New("remote API returned an invalid payload")
)

// maxErrorBody bounds how much of a rejection body is read.
const maxErrorBody = 64 << 10

// Client talks to the exam API that owns the source of truth.
type Client struct {
	baseURL string
	http    *apphttp.Client
	logger  logger.Logger
}

func NewClient(baseURL string, httpClient *apphttp.Client, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  log.Component("examapi"),
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Committees(ctx context.Context) ([]models.Committee, error) {
	var out []models.Committee
	if err := c.getCollection(ctx, "/committees", validation.CommitteesSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Criteria(ctx context.Context) ([]models.Criterion, error) {
	var out []models.Criterion
	if err := c.getCollection(ctx, "/criteria", validation.CriteriaSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Students(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	if err := c.getCollection(ctx, "/students", validation.StudentsSchema, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dataset fetches all three collections. A failure of any one fails the
// whole fetch.
func (c *Client) Dataset(ctx context.Context) (models.Dataset, error) {
	committees, err := c.Committees(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	criteria, err := c.Criteria(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	students, err := c.Students(ctx)
	if err != nil {
		return models.Dataset{}, err
	}
	return models.Dataset{Students: students, Committees: committees, Criteria: criteria}, nil
}

// ImportStudents posts new student records. A 4xx reply surfaces the
// server's message as ErrRemoteRejected.
func (c *Client) ImportStudents(ctx context.Context, records []models.ImportRecord) error {
	if records == nil {
		records = []models.ImportRecord{}
	}
	return c.post(ctx, "/students/import", records)
}

// Evaluate posts an evaluation for one student.
func (c *Client) Evaluate(ctx context.Context, studentID int, evaluation models.Evaluation) error {
	return c.post(ctx, "/students/"+strconv.Itoa(studentID)+"/evaluate", evaluation)
}

func (c *Client) getCollection(ctx context.Context, path string, schema *validation.Schema, out interface{}) error {
	op := "GET " + path
	resp, err := c.http.DoWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, apperrors.NewRemoteUnavailableError(op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.rejection(op, resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, apperrors.NewRemoteUnavailableError(op, err))
	}

	result, err := schema.ValidateDocument(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, op, err)
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, op, result.Summary())
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	op := "POST " + path
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", op, err)
	}

	resp, err := c.http.DoWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUnavailable, apperrors.NewRemoteUnavailableError(op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.rejection(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// rejection turns a non-2xx reply into an error, preferring the
// server-provided message.
func (c *Client) rejection(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Message string `json:"message"`
	}
	message := ""
	if json.Unmarshal(raw, &body) == nil {
		message = body.Message
	}
	if message == "" {
		message = fmt.Sprintf("remote API returned status %d", resp.StatusCode)
	}

	c.logger.Warn("Remote API rejected request", map[string]interface{}{
		"operation": op,
		"status":    resp.StatusCode,
		"message":   message,
	})

	return fmt.Errorf("%w: %w", ErrRemoteRejected, apperrors.NewRemoteRejectedError(op, resp.StatusCode, message))
}
