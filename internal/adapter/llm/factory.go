package llm

import (
	"log/slog"
	"time"
)

// ModeMock selects the scriptable stub instead of a real endpoint.
const ModeMock = "MOCK"

// NewEndpoint creates an inference endpoint. mode == ModeMock yields a
// MockClient; anything else yields a real client.
func NewEndpoint(mode, baseURL, apiKey, model string, timeout time.Duration) Endpoint {
	if mode == ModeMock {
		slog.Info("mock mode enabled, using mock LLM client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
