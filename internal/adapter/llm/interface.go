// Package llm provides the inference endpoint abstraction and its
// OpenAI-compatible client.
package llm

import "context"

// Endpoint is the inference collaborator the agent loop drives. Given
// the message sequence and the declared tool schemas it returns either
// final text or a tool-call request.
type Endpoint interface {
	Complete(ctx context.Context, messages []ChatMessage, tools []Tool) (*Completion, error)
}

// Ensure both clients implement the interface.
var (
	_ Endpoint = (*Client)(nil)
	_ Endpoint = (*MockClient)(nil)
)
