package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type httpRequestArgs struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

type httpRequestResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body"`
}

// HTTPRequestName is the registered name of the outbound HTTP tool.
const HTTPRequestName = "http_request"

const (
	httpRequestTimeout = 20 * time.Second
	httpBodyLimit      = 2 * 1024 * 1024
)

// NewHTTPRequest builds a general outbound HTTP tool. Responses larger than
// 2 MiB are truncated; JSON bodies are returned parsed.
func NewHTTPRequest(client *http.Client) Tool {
	if client == nil {
		client = &http.Client{}
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method": map[string]any{
				"type":        "string",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
				"description": "HTTP method. Defaults to GET.",
			},
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http or https URL to call.",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Optional request headers.",
			},
			"body": map[string]any{
				"description": "Optional JSON request body for non-GET methods.",
			},
		},
		"required": []string{"url"},
	}

	return NewFuncTool(
		HTTPRequestName,
		"Perform a single HTTP request and return status, headers, and parsed body.",
		schema,
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in httpRequestArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid http_request args: %w", err)
			}
			return executeHTTPRequest(ctx, client, in)
		},
	)
}

func executeHTTPRequest(ctx context.Context, client *http.Client, in httpRequestArgs) (*httpRequestResult, error) {
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %q", in.Method)
	}

	target := strings.TrimSpace(in.URL)
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", in.URL)
	}

	ctx, cancel := context.WithTimeout(ctx, httpRequestTimeout)
	defer cancel()

	var body io.Reader
	if method != http.MethodGet && len(bytes.TrimSpace(in.Body)) > 0 {
		body = bytes.NewReader(in.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range in.Headers {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		req.Header.Set(key, strings.TrimSpace(v))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, httpBodyLimit))
	headers := map[string]string{}
	for k, values := range resp.Header {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}

	var parsedBody any
	if json.Unmarshal(raw, &parsedBody) != nil {
		parsedBody = string(raw)
	}

	result := &httpRequestResult{Status: resp.StatusCode, Headers: headers, Body: parsedBody}
	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return result, nil
}
