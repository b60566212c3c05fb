package contextstore

import (
	"fmt"
	"strings"

	"github.com/anshulyadav1976/n8n-copilot/internal/diff"
	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// Summary produces the bounded structured view of this context for
// prompt injection and UI display. It carries ids, fetch timestamps,
// presence flags and the last diff; never raw credential material.
func (s *Store) Summary() domain.ContextSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := domain.ContextSummary{
		SessionID:    s.sessionID,
		MessageCount: len(s.messages),
		DiffCount:    len(s.diffHistory),
	}
	if s.workflow != nil {
		sum.HasWorkflow = true
		sum.WorkflowID = s.workflow.ID
		sum.WorkflowName = s.workflow.Name
		t := s.workflow.FetchedAt
		sum.WorkflowFetchedAt = &t
	}
	if s.execution != nil {
		sum.HasExecution = true
		sum.ExecutionID = s.execution.ID
		sum.ExecutionStatus = s.execution.Status
		t := s.execution.FetchedAt
		sum.ExecutionFetchedAt = &t
		// An execution that belongs to a different workflow is
		// surfaced, never silently reconciled.
		if s.workflow != nil && s.execution.WorkflowID != "" && s.execution.WorkflowID != s.workflow.ID {
			sum.ExecutionMismatch = true
		}
	}
	if n := len(s.diffHistory); n > 0 {
		last := s.diffHistory[n-1]
		sum.LastDiff = &last
	}
	return sum
}

// RenderSummary renders the summary as prompt text.
func RenderSummary(sum domain.ContextSummary) string {
	var b strings.Builder
	if sum.HasWorkflow {
		fmt.Fprintf(&b, "Active workflow: %s (id %s), fetched %s.\n",
			orUnnamed(sum.WorkflowName), sum.WorkflowID, sum.WorkflowFetchedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	} else {
		b.WriteString("No workflow selected.\n")
	}
	if sum.HasExecution {
		fmt.Fprintf(&b, "Active execution: %s (status %s), fetched %s.\n",
			sum.ExecutionID, sum.ExecutionStatus, sum.ExecutionFetchedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
		if sum.ExecutionMismatch {
			b.WriteString("Warning: the active execution belongs to a different workflow than the active workflow snapshot.\n")
		}
	} else {
		b.WriteString("No execution selected.\n")
	}
	if sum.LastDiff != nil {
		fmt.Fprintf(&b, "Changes since previous workflow fetch (%d refresh(es) so far):\n%s",
			sum.DiffCount, diff.Render(sum.LastDiff))
	}
	return b.String()
}

func orUnnamed(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}
