package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// httpCompleter talks to any chat endpoint. Request and response shape are
// controlled by the model's APIFormat.
type httpCompleter struct {
	model  domain.ModelSettings
	client *http.Client
	getenv func(string) string
}

func newHTTPCompleter(model domain.ModelSettings, client *http.Client, getenv func(string) string) *httpCompleter {
	return &httpCompleter{model: model, client: client, getenv: getenv}
}

func (c *httpCompleter) Name() string {
	return "http:" + c.model.Name
}

func (c *httpCompleter) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	body, err := c.buildRequestBody(req)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.model.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := c.setAuthHeaders(httpReq); err != nil {
		return "", backoff.Permanent(err)
	}
	for key, value := range c.model.APIFormat.ExtraHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(truncate(string(data), 200)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", statusErr
		}
		return "", backoff.Permanent(statusErr)
	}

	content, err := c.parseResponse(data)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrMalformedModelOutput, err))
	}
	return content, nil
}

// buildRequestBody places the system prompt either in a top-level "system"
// field or as the first chat message.
func (c *httpCompleter) buildRequestBody(req ports.CompletionRequest) ([]byte, error) {
	request := map[string]interface{}{
		"model":      c.model.Name,
		"max_tokens": c.model.GetMaxTokens(),
	}
	var messages []map[string]string
	if req.System != "" {
		if c.model.APIFormat.IsSystemMessageSeparate() {
			request["system"] = req.System
		} else {
			messages = append(messages, map[string]string{"role": "system", "content": req.System})
		}
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.User})
	request["messages"] = messages
	return json.Marshal(request)
}

func (c *httpCompleter) setAuthHeaders(req *http.Request) error {
	envVar := c.model.GetAuthEnvVar()
	if envVar == "" {
		return nil
	}
	apiKey := c.getenv(envVar)
	if apiKey == "" {
		return fmt.Errorf("%w: missing API key, set %s", domain.ErrModelUnavailable, envVar)
	}
	format := c.model.APIFormat
	req.Header.Set(format.GetAuthHeaderName(), format.GetAuthHeaderPrefix()+apiKey)
	return nil
}

func (c *httpCompleter) parseResponse(body []byte) (string, error) {
	var response interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("unmarshal JSON: %w", err)
	}
	path := c.model.APIFormat.GetResponseJSONPath()
	content, err := extractJSONPath(response, path)
	if err != nil {
		return "", fmt.Errorf("extract from path '%s': %w", path, err)
	}
	return strings.TrimSpace(content), nil
}

// extractJSONPath reads a string with a dotted path such as
// "choices[0].message.content".
func extractJSONPath(data interface{}, path string) (string, error) {
	current := data
	for _, part := range parseJSONPath(path) {
		if part.index {
			arr, ok := current.([]interface{})
			if !ok {
				return "", fmt.Errorf("expected array at index %s", part.value)
			}
			idx, err := strconv.Atoi(part.value)
			if err != nil || idx < 0 || idx >= len(arr) {
				return "", fmt.Errorf("index %s out of bounds (len=%d)", part.value, len(arr))
			}
			current = arr[idx]
			continue
		}
		obj, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("expected object at '%s'", part.value)
		}
		if current, ok = obj[part.value]; !ok {
			return "", fmt.Errorf("field '%s' not found", part.value)
		}
	}
	if str, ok := current.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("final value is not a string: %T", current)
}

type pathPart struct {
	value string
	index bool
}

func parseJSONPath(path string) []pathPart {
	var parts []pathPart
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, pathPart{value: current.String()})
			current.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '.':
			flush()
		case '[':
			flush()
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				parts = append(parts, pathPart{value: path[i+1 : j], index: true})
				i = j
			}
		default:
			current.WriteByte(path[i])
		}
	}
	flush()
	return parts
}
