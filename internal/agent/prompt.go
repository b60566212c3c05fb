package agent

import (
	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/llm"
	"github.com/anshulyadav1976/n8n-copilot/internal/contextstore"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// systemPolicy states the read-only contract explicitly. The tool set
// enforces it structurally; the prompt makes the model cooperate
// instead of fighting the registry.
const systemPolicy = `You are an n8n copilot. You help operators understand and debug
workflow-automation instances. You can read workflows and executions,
analyze failures, search the reference docs and the web, and suggest
JSON snippets for nodes and flows.

You operate strictly read-only: you MUST NOT attempt to create, modify,
activate, execute or delete anything on the instance, and no tool
available to you can do so. If the user asks for a change, explain what
to change and provide a copyable JSON snippet instead.

Use tools when you need real data; do not guess ids or invent
execution results. If a tool fails, say what failed and why rather
than fabricating an answer. Be concise. Cite web sources as markdown
links named by domain.`

// buildMessages assembles the wire message sequence for one model
// call: system policy, context summary, then the bounded history.
func buildMessages(store *contextstore.Store) []llm.ChatMessage {
	summary := store.Summary()

	messages := []llm.ChatMessage{
		{Role: "system", Content: systemPolicy},
		{Role: "system", Content: "Current context:\n" + contextstore.RenderSummary(summary)},
	}
	for _, m := range store.History() {
		wire := llm.ChatMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == domain.RoleTool {
			// Prior-turn tool exchanges are carried as plain context;
			// the tool_call_id pairing only exists within a turn.
			wire.Role = "user"
			wire.Content = "[tool " + m.ToolName + " previously returned]\n" + m.Content
		}
		messages = append(messages, wire)
	}
	return messages
}
