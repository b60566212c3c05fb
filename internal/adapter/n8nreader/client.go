package n8nreader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

const (
	apiKeyHeader = "X-N8N-API-KEY"

	prefixModern = "/api/v1" // public API
	prefixLegacy = "/rest"   // pre-public-API instances

	pageLimit = 100
)

// Client is a thin read-only client for the n8n REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	apiPrefix string // cached after the first successful probe
}

// NewClient creates a reader for one instance. The api key is held for
// the lifetime of the client and never logged or echoed back.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "n8nreader"),
	}, nil
}

// ensurePrefix probes which API surface the instance supports, modern
// first, and caches the first prefix answering 200.
func (c *Client) ensurePrefix(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.apiPrefix != "" {
		p := c.apiPrefix
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	var lastErr error
	for _, prefix := range []string{prefixModern, prefixLegacy} {
		_, err := c.get(ctx, prefix+"/workflows", url.Values{"limit": {"1"}})
		if err == nil {
			c.mu.Lock()
			c.apiPrefix = prefix
			c.mu.Unlock()
			c.logger.Info("detected n8n api surface", "prefix", prefix)
			return prefix, nil
		}
		lastErr = err
		// A 401/403 means we reached the right surface with a bad
		// key; probing further would mask the real problem.
		var te *domain.ToolError
		if errors.As(err, &te) && te.Kind == domain.ToolErrorAuth {
			return "", err
		}
	}
	if lastErr == nil {
		lastErr = &domain.ToolError{Kind: domain.ToolErrorTransient, Message: "failed to detect n8n api surface"}
	}
	return "", lastErr
}

// TestConnection validates connectivity with a one-row listing.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ensurePrefix(ctx)
	return err
}

// ListWorkflows lists workflows, following nextCursor pagination on
// the modern API. nameFilter is applied client-side: the legacy
// surface has no server-side filter.
func (c *Client) ListWorkflows(ctx context.Context, nameFilter string) ([]domain.WorkflowSummary, error) {
	prefix, err := c.ensurePrefix(ctx)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if prefix == prefixModern {
		cursor := ""
		for {
			params := url.Values{"limit": {strconv.Itoa(pageLimit)}}
			if cursor != "" {
				params.Set("cursor", cursor)
			}
			body, err := c.get(ctx, prefix+"/workflows", params)
			if err != nil {
				return nil, err
			}
			page, next, err := decodePage(body)
			if err != nil {
				return nil, err
			}
			items = append(items, page...)
			if next == "" {
				break
			}
			cursor = next
		}
	} else {
		body, err := c.get(ctx, prefix+"/workflows", nil)
		if err != nil {
			return nil, err
		}
		items, _, err = decodePage(body)
		if err != nil {
			return nil, err
		}
	}

	summaries := make([]domain.WorkflowSummary, 0, len(items))
	for _, item := range items {
		var wf struct {
			ID     json.Number `json:"id"`
			Name   string      `json:"name"`
			Active bool        `json:"active"`
		}
		if err := json.Unmarshal(item, &wf); err != nil {
			continue
		}
		if nameFilter != "" && !strings.Contains(strings.ToLower(wf.Name), strings.ToLower(nameFilter)) {
			continue
		}
		summaries = append(summaries, domain.WorkflowSummary{ID: wf.ID.String(), Name: wf.Name, Active: wf.Active})
	}
	return summaries, nil
}

// GetWorkflow fetches one workflow definition as an opaque snapshot.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowSnapshot, error) {
	prefix, err := c.ensurePrefix(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, prefix+"/workflows/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	raw := unwrapData(body)
	var meta struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(raw, &meta)
	return &domain.WorkflowSnapshot{
		ID:        id,
		Name:      meta.Name,
		FetchedAt: time.Now().UTC(),
		RawJSON:   raw,
	}, nil
}

// ListExecutions lists executions with optional workflow/status
// constraints.
func (c *Client) ListExecutions(ctx context.Context, filter ListExecutionsFilter) ([]domain.ExecutionSummary, error) {
	prefix, err := c.ensurePrefix(ctx)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	if filter.WorkflowID != "" {
		params.Set("workflowId", filter.WorkflowID)
	}
	if filter.Status != "" {
		params.Set("status", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	params.Set("limit", strconv.Itoa(limit))
	if filter.Offset > 0 {
		params.Set("offset", strconv.Itoa(filter.Offset))
	}

	body, err := c.get(ctx, prefix+"/executions", params)
	if err != nil {
		return nil, err
	}
	items, _, err := decodePage(body)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ExecutionSummary, 0, len(items))
	for _, item := range items {
		var ex struct {
			ID         json.Number `json:"id"`
			WorkflowID json.Number `json:"workflowId"`
			Status     string      `json:"status"`
			Finished   *bool       `json:"finished"`
			StartedAt  *time.Time  `json:"startedAt"`
			StoppedAt  *time.Time  `json:"stoppedAt"`
		}
		if err := json.Unmarshal(item, &ex); err != nil {
			continue
		}
		summaries = append(summaries, domain.ExecutionSummary{
			ID:         ex.ID.String(),
			WorkflowID: ex.WorkflowID.String(),
			Status:     executionStatus(ex.Status, ex.Finished),
			StartedAt:  ex.StartedAt,
			StoppedAt:  ex.StoppedAt,
		})
	}
	return summaries, nil
}

// GetExecution fetches one execution record as an opaque snapshot.
func (c *Client) GetExecution(ctx context.Context, id string) (*domain.ExecutionSnapshot, error) {
	prefix, err := c.ensurePrefix(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, prefix+"/executions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	raw := unwrapData(body)
	var meta struct {
		WorkflowID json.Number `json:"workflowId"`
		Status     string      `json:"status"`
		Finished   *bool       `json:"finished"`
	}
	_ = json.Unmarshal(raw, &meta)
	return &domain.ExecutionSnapshot{
		ID:         id,
		WorkflowID: meta.WorkflowID.String(),
		Status:     executionStatus(meta.Status, meta.Finished),
		FetchedAt:  time.Now().UTC(),
		RawJSON:    raw,
	}, nil
}

// get performs one authenticated GET and classifies failures. Retry
// policy lives in the tool registry, not here.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: err.Error()}
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	return nil, classifyStatus(resp, body)
}

// classifyStatus maps an HTTP failure onto the tool error taxonomy.
func classifyStatus(resp *http.Response, body []byte) *domain.ToolError {
	msg := fmt.Sprintf("n8n returned %d", resp.StatusCode)
	if len(body) > 0 && len(body) < 300 {
		msg = fmt.Sprintf("%s: %s", msg, strings.TrimSpace(string(body)))
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &domain.ToolError{Kind: domain.ToolErrorAuth, Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		return &domain.ToolError{Kind: domain.ToolErrorNotFound, Message: msg}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.ToolError{Kind: domain.ToolErrorRateLimited, Message: msg, RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 500:
		return &domain.ToolError{Kind: domain.ToolErrorTransient, Message: msg}
	default:
		return &domain.ToolError{Kind: domain.ToolErrorInvalidArgs, Message: msg}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// decodePage handles both response shapes: a bare array (legacy) or
// {"data": [...], "nextCursor": "..."} (modern).
func decodePage(body []byte) ([]json.RawMessage, string, error) {
	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, "", nil
	}
	var wrapped struct {
		Data       []json.RawMessage `json:"data"`
		NextCursor string            `json:"nextCursor"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, "", &domain.ToolError{Kind: domain.ToolErrorTransient, Message: "unexpected response shape from n8n"}
	}
	return wrapped.Data, wrapped.NextCursor, nil
}

// unwrapData strips a {"data": {...}} envelope when present.
func unwrapData(body []byte) json.RawMessage {
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Data) > 0 && wrapped.Data[0] == '{' {
		return wrapped.Data
	}
	return body
}

// executionStatus prefers the explicit status field, falling back to
// the legacy finished flag.
func executionStatus(status string, finished *bool) string {
	if status != "" {
		return status
	}
	if finished != nil {
		if *finished {
			return "success"
		}
		return "error"
	}
	return "unknown"
}
