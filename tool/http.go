// Package tool provides engine.Handler implementations that call out to
// external services: an HTTP request handler and a scriptable mock used
// in tests and examples.
package tool

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nebula-run/flow/engine"
)

// HTTPHandler executes GET/POST requests against an arbitrary URL.
// Registered under an action id such as "http_request".
//
// Input shape: map[string]any{"method", "url", "headers", "body"}.
// Output: map[string]any{"status_code", "headers", "body"}.
type HTTPHandler struct {
	client *http.Client
}

// NewHTTPHandler builds an HTTPHandler with default client settings.
// Per-node timeouts are enforced by the engine via the request's
// context, not a client-level timeout.
func NewHTTPHandler() *HTTPHandler {
	return &HTTPHandler{client: &http.Client{}}
}

func (h *HTTPHandler) Handle(ctx engine.Context, input any) (engine.ActionResult, error) {
	params, ok := input.(map[string]any)
	if !ok {
		return engine.ActionResult{}, fmt.Errorf("http_request: input must be an object, got %T", input)
	}

	urlStr, ok := params["url"].(string)
	if !ok || urlStr == "" {
		return engine.ActionResult{}, fmt.Errorf("http_request: url parameter required (string)")
	}

	method := "GET"
	if m, ok := params["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return engine.ActionResult{}, fmt.Errorf("http_request: unsupported method %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := params["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return engine.ActionResult{}, fmt.Errorf("http_request: failed to create request: %w", err)
	}

	if headers, ok := params["headers"].(map[string]any); ok {
		for key, value := range headers {
			if valueStr, ok := value.(string); ok {
				req.Header.Set(key, valueStr)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return engine.ActionResult{}, fmt.Errorf("http_request: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.ActionResult{}, fmt.Errorf("http_request: failed to read response body: %w", err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}
	return engine.Success(engine.Value(result)), nil
}
