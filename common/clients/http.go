package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// HTTPClient wraps http.Client with context-aware helpers
// It extracts metadata from context and adds the matching headers
type HTTPClient struct {
	client  *http.Client
	logger  Logger
	headers map[string]string
}

// NewHTTPClient creates a new HTTP client wrapper
func NewHTTPClient(client *http.Client, logger Logger) *HTTPClient {
	return &HTTPClient{
		client:  client,
		logger:  logger,
		headers: map[string]string{},
	}
}

// WithHeader returns a copy that sets header on every request
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	headers[key] = value
	return &HTTPClient{client: c.client, logger: c.logger, headers: headers}
}

// DoRequest creates and executes an HTTP request, extracting metadata from context
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if actor, ok := GetActor(ctx); ok {
		req.Header.Set("X-Acting-User", actor)
	}
	if requestID, ok := GetRequestID(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	return c.client.Do(req)
}

// DoJSON marshals payload as the request body. A nil payload sends no body.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, payload any) (*http.Response, error) {
	if payload == nil {
		return c.DoRequest(ctx, method, url, nil)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.DoRequest(ctx, method, url, bytes.NewReader(data))
}
