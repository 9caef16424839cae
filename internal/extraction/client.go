package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// ErrNoCallID is returned when a lookup is attempted without a call id. No
// request is issued in that case.
var ErrNoCallID = errors.New("extraction: call id required")

// ErrNoDocumentID is returned by Get when the document id is blank.
var ErrNoDocumentID = errors.New("extraction: document id required")

// Doer is the HTTP primitive the client depends on. An *http.Client built by
// the transport package attaches the bearer token.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-2xx response from the extraction endpoints.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("extraction: status %d", e.StatusCode)
	}
	return fmt.Sprintf("extraction: status %d: %s", e.StatusCode, e.Body)
}

// Client reads extraction records from the main backend.
type Client struct {
	baseURL    string
	httpClient Doer
	logger     *logging.Logger
}

// NewClient creates an extraction client. A nil doer falls back to a plain
// http.Client with a request timeout.
func NewClient(baseURL string, doer Doer, logger *logging.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: doer,
		logger:     logger,
	}
}

// ListByCall fetches every extraction record associated with callID (phase 1).
func (c *Client) ListByCall(ctx context.Context, callID, userID string) ([]Record, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, ErrNoCallID
	}
	q := url.Values{}
	q.Set("callId", callID)
	if userID != "" {
		q.Set("userId", userID)
	}
	var records []Record
	if err := c.get(ctx, "/v1/extractions?"+q.Encode(), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches a single extraction record by document id (phase 2).
func (c *Client) Get(ctx context.Context, documentID string) (*Record, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrNoDocumentID
	}
	var rec Record
	if err := c.get(ctx, "/v1/extractions/"+url.PathEscape(documentID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("extraction: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("extraction: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("extraction: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Debug("extraction request failed", "path", path, "status", resp.StatusCode)
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("extraction: unmarshal response: %w", err)
	}
	return nil
}
