// Package client talks to the relay services over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/relay-stack/common/middleware"
)

// DefaultTimeout bounds every request, matching the producer's original
// request timeout.
const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx response. Message and Fields come from the service's
// {"error": ..., "fields": [...]} body when present.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (status %d, fields: %s)", msg, e.StatusCode, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
}

// httpClient holds what BridgeClient and SinkClient share.
type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newHTTPClient(baseURL, token string) httpClient {
	return httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// do sends body (when non-nil) as JSON and decodes a 2xx response into out
// (when non-nil).
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := middleware.GetRequestID(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error  string   `json:"error"`
			Fields []string `json:"fields"`
		}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)); json.Unmarshal(data, &errBody) == nil {
			apiErr.Message = errBody.Error
			apiErr.Fields = errBody.Fields
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
