package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an Endpoint for tests and offline development. With no
// script it echoes the last user message; a script makes it return a
// fixed sequence of completions.
type MockClient struct {
	mu     sync.Mutex
	script []*Completion
	err    error
	calls  [][]ChatMessage
}

// NewMockClient creates an unscripted mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Enqueue appends a scripted completion, returned in FIFO order.
func (m *MockClient) Enqueue(c *Completion) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, c)
	return m
}

// FailWith makes every subsequent call return err.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the message sequences of every Complete invocation.
func (m *MockClient) Calls() [][]ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]ChatMessage, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete pops the next scripted completion. When the script is
// empty it falls back to echoing the last user message.
func (m *MockClient) Complete(ctx context.Context, messages []ChatMessage, tools []Tool) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]ChatMessage, len(messages))
	copy(recorded, messages)
	m.calls = append(m.calls, recorded)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}

	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			lastUser = messages[i].Content
			break
		}
	}
	if lastUser == "" {
		return &Completion{FinalText: "[MOCK] This is a mock response."}, nil
	}
	return &Completion{FinalText: fmt.Sprintf("[MOCK] Received your message: %q.", truncate(lastUser, 100))}, nil
}
