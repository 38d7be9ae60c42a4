// Package httputil provides JSON response helpers and the HTTP client used for
// outbound provider calls.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/letsbefriends/platform/internal/logging"
)

// Doer executes HTTP requests. *http.Client and resilience.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ServiceClient calls a JSON API with a static bearer key and propagates the
// request trace id.
type ServiceClient struct {
	doer    Doer
	baseURL string
	apiKey  string
}

// ServiceClientConfig configures the service client.
type ServiceClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Doer overrides the default http.Client, e.g. with a resilient client.
	Doer Doer
}

// NewServiceClient creates a new service client.
func NewServiceClient(cfg ServiceClientConfig) *ServiceClient {
	doer := cfg.Doer
	if doer == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}

	return &ServiceClient{
		doer:    doer,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// Do executes a request against baseURL+path with an optional JSON body.
func (c *ServiceClient) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if traceID := logging.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Get performs a GET request.
func (c *ServiceClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *ServiceClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// PostJSON posts body and decodes the JSON response into target.
func (c *ServiceClient) PostJSON(ctx context.Context, path string, body, target interface{}) error {
	resp, err := c.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, target)
}

// DecodeResponse decodes a JSON response into the target struct.
func DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, err := ReadAllWithLimit(resp.Body, 64<<10)
		if err != nil {
			return fmt.Errorf("read error response body: %w", err)
		}
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, msg)
	}

	if target == nil {
		if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 8<<20)); err != nil {
			return fmt.Errorf("discard response body: %w", err)
		}
		return nil
	}

	body, err := ReadAllStrict(resp.Body, 8<<20)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether the body was
// longer.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads the whole body and fails when it exceeds limit.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return data, nil
}
