package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a client for the given endpoint. model is the
// model identifier sent with every request.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: 0.2, // low for tool-use reliability
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete sends one non-streaming chat completion request and
// interprets the response as either final text or tool calls. Any
// failure is wrapped as *domain.InferenceEndpointError, which is fatal
// to the turn.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, tools []Tool) (*Completion, error) {
	req := &ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &c.temperature,
	}
	if len(tools) > 0 {
		req.Tools = tools
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &domain.InferenceEndpointError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.InferenceEndpointError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.InferenceEndpointError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.InferenceEndpointError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.InferenceEndpointError{
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300)),
		}
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, &domain.InferenceEndpointError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message == nil {
		return nil, &domain.InferenceEndpointError{Err: fmt.Errorf("empty completion")}
	}

	msg := completion.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		return &Completion{ToolCalls: msg.ToolCalls}, nil
	}
	return &Completion{FinalText: msg.Content}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
