package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pots-hq/pots/internal/config"
)

// APIError is a non-2xx response from the core platform, carrying the HTTP
// status and the server-supplied problem detail when one was returned.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("core api: %d %s", e.Status, e.Message)
}

// problemDetail is the RFC 7807-ish error body the core platform returns.
type problemDetail struct {
	Detail string `json:"detail"`
}

// Client is an HTTP client for the external core platform API. All calls are
// bearer-token authenticated; the token is supplied per call because tokens
// are session-scoped and refreshed by the identity provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a core API client from configuration.
func NewClient(cfg *config.CoreAPIConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) buildURL(path string) string {
	return c.baseURL + path
}

// doJSON issues a request and decodes the JSON response into out when out is
// non-nil. A non-2xx status is translated into *APIError.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("core api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var detail problemDetail
		if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil && detail.Detail != "" {
			apiErr.Message = detail.Detail
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func pathEscape(id string) string {
	return url.PathEscape(id)
}
