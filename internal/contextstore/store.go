// Package contextstore holds the bounded state of one conversation:
// message history, the active workflow snapshot with its diff history,
// the active execution snapshot, and the tool-call ledger.
package contextstore

import (
	"fmt"
	"sync"

	"github.com/anshulyadav1976/n8n-copilot/internal/diff"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// DefaultHistoryBudget bounds the history in characters, roughly
// 4 chars per token.
const DefaultHistoryBudget = 48000

// Store is the per-session AgentContext. All methods are safe for
// concurrent use; each mutation is atomic from the caller's view.
//
// Invariant: at most one active workflow snapshot and at most one
// active execution snapshot at any time.
type Store struct {
	mu sync.Mutex

	sessionID     string
	historyBudget int

	messages    []domain.Message
	workflow    *domain.WorkflowSnapshot
	execution   *domain.ExecutionSnapshot
	diffHistory []domain.WorkflowDiff
	toolCalls   []domain.ToolCall
}

// New creates an empty context for one session. historyBudget <= 0
// selects DefaultHistoryBudget.
func New(sessionID string, historyBudget int) *Store {
	if historyBudget <= 0 {
		historyBudget = DefaultHistoryBudget
	}
	return &Store{sessionID: sessionID, historyBudget: historyBudget}
}

// SessionID returns the owning session id.
func (s *Store) SessionID() string { return s.sessionID }

// AppendMessage appends to the history and truncates oldest-first if
// the budget is exceeded. Snapshots are structured context, not
// history entries, so truncation never touches them.
func (s *Store) AppendMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.truncateLocked()
}

func (s *Store) truncateLocked() {
	total := 0
	for _, m := range s.messages {
		total += len(m.Content)
	}
	for total > s.historyBudget && len(s.messages) > 1 {
		total -= len(s.messages[0].Content)
		s.messages = s.messages[1:]
	}
}

// History returns a copy of the bounded message history.
func (s *Store) History() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetWorkflow installs a new active workflow snapshot. When a prior
// snapshot exists, the structural diff old->new is computed first and
// appended to the diff history; the prior snapshot is then discarded.
// The first fetch produces no diff. Returns the diff, or nil.
func (s *Store) SetWorkflow(snapshot domain.WorkflowSnapshot) (*domain.WorkflowDiff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workflow == nil {
		s.workflow = &snapshot
		return nil, nil
	}

	r, err := diff.Diff(s.workflow.RawJSON, snapshot.RawJSON)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", snapshot.ID, err)
	}
	d := domain.WorkflowDiff{
		FromFetchedAt: s.workflow.FetchedAt,
		ToFetchedAt:   snapshot.FetchedAt,
		Added:         r.Added,
		Removed:       r.Removed,
		Changed:       r.Changed,
	}
	s.diffHistory = append(s.diffHistory, d)
	s.workflow = &snapshot
	return &d, nil
}

// Workflow returns the active workflow snapshot, or nil.
func (s *Store) Workflow() *domain.WorkflowSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflow == nil {
		return nil
	}
	w := *s.workflow
	return &w
}

// DiffHistory returns a copy of all diffs computed so far, oldest
// first, so the agent can reference what changed across refreshes.
func (s *Store) DiffHistory() []domain.WorkflowDiff {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WorkflowDiff, len(s.diffHistory))
	copy(out, s.diffHistory)
	return out
}

// SetExecution installs the active execution snapshot, replacing any
// prior one. Independent of workflow state.
func (s *Store) SetExecution(snapshot domain.ExecutionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execution = &snapshot
}

// ClearExecution removes the active execution snapshot. Idempotent;
// workflow state is untouched.
func (s *Store) ClearExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execution = nil
}

// Execution returns the active execution snapshot, or nil.
func (s *Store) Execution() *domain.ExecutionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.execution == nil {
		return nil
	}
	e := *s.execution
	return &e
}

// AppendToolCall records one immutable ledger entry.
func (s *Store) AppendToolCall(tc domain.ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls = append(s.toolCalls, tc)
}

// ToolCalls returns a copy of the ledger in append order.
func (s *Store) ToolCalls() []domain.ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ToolCall, len(s.toolCalls))
	copy(out, s.toolCalls)
	return out
}

// Reset drops all conversation state. Used when the user starts a new
// session or switches workflows.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.workflow = nil
	s.execution = nil
	s.diffHistory = nil
	s.toolCalls = nil
}
