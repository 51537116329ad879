package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultUserAgent = "dinefind/1.0"

// StatusError reports a non-retryable (or retry-exhausted) upstream status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d from %s", e.Code, e.URL)
}

// IsStatus reports whether err carries the given upstream status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client is an outbound HTTP client with bounded retries. Transport errors,
// 429 and 5xx responses are retried with exponential backoff; other 4xx
// fail immediately. Context cancellation is honored during backoff sleeps.
type Client struct {
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

// New builds a client with the given retry policy. attempts is the total
// number of tries, not the number of retries.
func New(timeout time.Duration, attempts int, baseDelay time.Duration, logger *zap.Logger) *Client {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// GetJSON performs a GET and unmarshals the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.Do(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON performs a POST with a JSON body and unmarshals the response.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", url, err)
	}
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	body, err := c.Do(ctx, http.MethodPost, url, data, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

// Do executes the request with the client's retry policy and returns the
// raw body. The request is rebuilt per attempt so POST bodies replay safely.
func (c *Client) Do(ctx context.Context, method, url string, payload []byte, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := c.buildRequest(ctx, method, url, payload, headers)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("Outbound request",
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Int("attempt", attempt+1),
		)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Cancellation from our side is terminal, network faults retry
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Warn("Request failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, URL: url}
			c.logger.Warn("Upstream backoff",
				zap.Int("status", resp.StatusCode),
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
			)
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: url}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response from %s: %w", url, err)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded for %s: %w", url, lastErr)
}

func (c *Client) buildRequest(ctx context.Context, method, url string, payload []byte, headers map[string]string) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	return req, nil
}

// sleep waits base*2^attempt, bailing out early on cancellation.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
