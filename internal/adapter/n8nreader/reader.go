// Package n8nreader implements the read-only remote-data reader for
// n8n instances. It auto-detects whether the instance speaks the
// public API ("/api/v1") or the legacy REST surface ("/rest") and
// authenticates every call with the caller-supplied key header.
package n8nreader

import (
	"context"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
)

// ListExecutionsFilter narrows an execution listing. Zero values mean
// no constraint; Limit <= 0 selects the server default.
type ListExecutionsFilter struct {
	WorkflowID string
	Status     string
	Limit      int
	Offset     int
}

// Reader is the remote-data collaborator. All operations are reads;
// failures are reported as *domain.ToolError classified by kind.
type Reader interface {
	ListWorkflows(ctx context.Context, nameFilter string) ([]domain.WorkflowSummary, error)
	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowSnapshot, error)
	ListExecutions(ctx context.Context, filter ListExecutionsFilter) ([]domain.ExecutionSummary, error)
	GetExecution(ctx context.Context, id string) (*domain.ExecutionSnapshot, error)
	TestConnection(ctx context.Context) error
}

var _ Reader = (*Client)(nil)
