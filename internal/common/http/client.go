// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"exam-queue/internal/common/logger"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// ErrRequestTimeout is returned when the caller's context ends before a
// usable response arrives.
var ErrRequestTimeout = errors.New("request timed out")

// RequestFactory builds a fresh request for every attempt so bodies can be
// replayed.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Client retries transport errors and 5xx responses with exponential
// backoff. 4xx responses are returned to the caller untouched.
type Client struct {
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      logger.Logger
}

func NewClient(timeout time.Duration, maxRetries int, log logger.Logger) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:  maxRetries,
		baseBackoff: 100 * time.Millisecond,
		logger:      log.Component("http"),
	}
}

// WithBackoff overrides the first retry delay. Used by tests.
func (c *Client) WithBackoff(d time.Duration) *Client {
	c.baseBackoff = d
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoWithRetry runs the request produced by newReq until it gets a non-5xx
// response or the retries are exhausted. Every attempt carries the same
// request id.
func (c *Client) DoWithRetry(ctx context.Context, newReq RequestFactory) (*http.Response, error) {
	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err())
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set(RequestIDHeader, requestID)

		resp, err := c.httpClient.Do(req)
		if ctx.Err() != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err())
		}
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		c.logger.Debug("Request attempt failed", map[string]interface{}{
			"requestId": requestID,
			"method":    req.Method,
			"url":       req.URL.String(),
			"attempt":   attempt + 1,
			"error":     lastErr,
		})
	}

	return nil, lastErr
}
