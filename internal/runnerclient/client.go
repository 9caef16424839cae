// Package runnerclient is the typed client for the scenario runner service.
package runnerclient

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

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// APIError is returned for every non-2xx response. Error() is exactly the
// message extracted from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Doer is satisfied by *http.Client; the transport package supplies one that
// attaches the bearer token.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the runner service. It never retries.
type Client struct {
	baseURL    string
	httpClient Doer
	logger     *logging.Logger
}

// New creates a runner client for baseURL.
func New(baseURL string, doer Doer, logger *logging.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: doer, logger: logger}
}

func (c *Client) ListScenarios(ctx context.Context) ([]scenario.ScenarioSummary, error) {
	var out []scenario.ScenarioSummary
	if err := c.do(ctx, http.MethodGet, "/scenarios", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetScenario(ctx context.Context, name string) (*scenario.ScenarioDetail, error) {
	var out scenario.ScenarioDetail
	if err := c.do(ctx, http.MethodGet, "/scenarios/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateScenario persists a new scenario. The returned summary carries the
// file_path used to address it afterwards.
func (c *Client) CreateScenario(ctx context.Context, req scenario.ScenarioCreateRequest) (*scenario.ScenarioSummary, error) {
	var out scenario.ScenarioSummary
	if err := c.do(ctx, http.MethodPost, "/scenarios", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateScenario replaces the named scenario.
func (c *Client) UpdateScenario(ctx context.Context, name string, req scenario.ScenarioCreateRequest) (*scenario.ScenarioSummary, error) {
	var out scenario.ScenarioSummary
	if err := c.do(ctx, http.MethodPut, "/scenarios/"+url.PathEscape(name), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteScenario(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/scenarios/"+url.PathEscape(name), nil, nil)
}

func (c *Client) RunScenario(ctx context.Context, name string) (*scenario.ScenarioRunResult, error) {
	var out scenario.ScenarioRunResult
	if err := c.do(ctx, http.MethodPost, "/run/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RunAllScenarios(ctx context.Context) (*scenario.RunAllResult, error) {
	var out scenario.RunAllResult
	if err := c.do(ctx, http.MethodPost, "/run", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateScenario asks the service for a draft scenario. mockPromptFile may be empty.
func (c *Client) GenerateScenario(ctx context.Context, description, mockPromptFile string) (*scenario.ScenarioCreateRequest, error) {
	body := scenario.GenerateRequest{Description: description, MockPromptFile: mockPromptFile}
	var out scenario.ScenarioCreateRequest
	if err := c.do(ctx, http.MethodPost, "/generate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListPrompts(ctx context.Context) (*scenario.PromptList, error) {
	var out scenario.PromptList
	if err := c.do(ctx, http.MethodGet, "/prompts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPromptContent(ctx context.Context, name string) (*scenario.PromptContent, error) {
	var out scenario.PromptContent
	if err := c.do(ctx, http.MethodGet, "/prompts/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPromptFields(ctx context.Context, name string) (*scenario.PromptFields, error) {
	var out scenario.PromptFields
	if err := c.do(ctx, http.MethodGet, "/prompt-fields/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckHealth(ctx context.Context) (*scenario.Health, error) {
	var out scenario.Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("runnerclient: marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("runnerclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runnerclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("runnerclient: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
		c.logger.Debug("runner request failed", "method", method, "path", path, "status", resp.StatusCode, "error", apiErr.Message)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("runnerclient: decode response: %w", err)
	}
	return nil
}

// errorMessage yields detail, then message, then "Request failed: <status>".
// A present but non-string field is reported as its JSON text.
func errorMessage(status int, raw []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg, ok := fieldText(body.Detail); ok {
			return msg
		}
		if msg, ok := fieldText(body.Message); ok {
			return msg
		}
	}
	return fmt.Sprintf("Request failed: %d", status)
}

func fieldText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}
