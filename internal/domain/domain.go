// Package domain defines the core domain models for the copilot.
package domain

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowSnapshot is a point-in-time capture of a remote workflow
// definition. RawJSON is opaque: it is only ever diffed and displayed.
type WorkflowSnapshot struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
	RawJSON   json.RawMessage `json:"raw_json"`
}

// ExecutionSnapshot is a point-in-time capture of one workflow run.
type ExecutionSnapshot struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Status     string          `json:"status"`
	FetchedAt  time.Time       `json:"fetched_at"`
	RawJSON    json.RawMessage `json:"raw_json"`
}

// ValueChange holds both sides of a changed path.
type ValueChange struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// WorkflowDiff is the structural delta between two snapshots of the
// same workflow. Paths are dotted (object keys, array indices); arrays
// are compared by position.
type WorkflowDiff struct {
	FromFetchedAt time.Time              `json:"from_fetched_at"`
	ToFetchedAt   time.Time              `json:"to_fetched_at"`
	Added         []string               `json:"added"`
	Removed       []string               `json:"removed"`
	Changed       map[string]ValueChange `json:"changed"`
}

// Empty reports whether the diff carries no structural change.
func (d *WorkflowDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ToolCallStatus is the terminal outcome of a ledger entry.
type ToolCallStatus string

const (
	ToolCallStatusSucceeded ToolCallStatus = "SUCCEEDED"
	ToolCallStatusFailed    ToolCallStatus = "FAILED"
)

// ToolCall is one append-only ledger entry. Entries are immutable once
// recorded: exactly one of Result or Error is set.
type ToolCall struct {
	ToolCallID string          `json:"tool_call_id"`
	TurnID     string          `json:"turn_id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Status     ToolCallStatus  `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *ToolError      `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TurnOutcome classifies how a turn ended.
type TurnOutcome string

const (
	TurnOutcomeAnswered        TurnOutcome = "answered"
	TurnOutcomeBudgetExhausted TurnOutcome = "budget_exhausted"
	TurnOutcomeTimedOut        TurnOutcome = "timed_out"
	TurnOutcomeFailed          TurnOutcome = "failed"
)

// TurnResult is what a completed turn hands back to the caller.
type TurnResult struct {
	TurnID    string         `json:"turn_id"`
	FinalText string         `json:"final_text"`
	Outcome   TurnOutcome    `json:"outcome"`
	Context   ContextSummary `json:"context"`
}

// ContextSummary is the bounded view of an AgentContext suitable for
// prompt injection and UI display. It never carries credentials.
type ContextSummary struct {
	SessionID          string        `json:"session_id"`
	MessageCount       int           `json:"message_count"`
	HasWorkflow        bool          `json:"has_workflow"`
	WorkflowID         string        `json:"workflow_id,omitempty"`
	WorkflowName       string        `json:"workflow_name,omitempty"`
	WorkflowFetchedAt  *time.Time    `json:"workflow_fetched_at,omitempty"`
	HasExecution       bool          `json:"has_execution"`
	ExecutionID        string        `json:"execution_id,omitempty"`
	ExecutionStatus    string        `json:"execution_status,omitempty"`
	ExecutionFetchedAt *time.Time    `json:"execution_fetched_at,omitempty"`
	ExecutionMismatch  bool          `json:"execution_mismatch,omitempty"`
	DiffCount          int           `json:"diff_count"`
	LastDiff           *WorkflowDiff `json:"last_diff,omitempty"`
}

// WorkflowSummary is one row of a workflow listing.
type WorkflowSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ExecutionSummary is one row of an execution listing.
type ExecutionSummary struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
}

// Passage is one ranked document-retrieval hit.
type Passage struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// SearchResult is one ranked web-search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
