// Package websearch implements the web-search collaborator against a
// SearXNG-style JSON search endpoint.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// Searcher is the web-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// Client queries GET {base}/search?q=...&format=json.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxResults int
}

var _ Searcher = (*Client)(nil)

// NewClient creates a search client. maxResults <= 0 defaults to 5.
func NewClient(baseURL string, timeout time.Duration, maxResults int) *Client {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxResults: maxResults,
	}
}

// Search runs one query and normalizes failures into the tool error
// taxonomy.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	// Missing configuration is a deployment problem, not an argument
	// problem. Transient keeps the model from rewriting a valid query.
	if c.baseURL == "" {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: "web search backend is not configured (SEARCH_BASE_URL unset)"}
	}

	params := url.Values{"q": {query}, "format": {"json"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &domain.ToolError{Kind: domain.ToolErrorRateLimited, Message: "search backend rate limited"}
	case resp.StatusCode >= 500:
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: fmt.Sprintf("search backend returned %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.ToolError{Kind: domain.ToolErrorInvalidArgs, Message: fmt.Sprintf("search backend returned %d", resp.StatusCode)}
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &domain.ToolError{Kind: domain.ToolErrorTransient, Message: fmt.Sprintf("decode search response: %v", err)}
	}

	results := make([]domain.SearchResult, 0, c.maxResults)
	for _, r := range payload.Results {
		results = append(results, domain.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(results) == c.maxResults {
			break
		}
	}
	return results, nil
}
