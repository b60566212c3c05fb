// Package v1 provides the HTTP API handlers for the copilot.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
	"github.com/anshulyadav1976/n8n-copilot/internal/ledger"
	"github.com/anshulyadav1976/n8n-copilot/internal/session"
	"github.com/anshulyadav1976/n8n-copilot/internal/snippets"
)

// Handler handles HTTP requests.
type Handler struct {
	sessions *session.Manager
	ledger   *ledger.SQLiteLedger
}

// NewHandler creates a new handler.
func NewHandler(sessions *session.Manager, ledger *ledger.SQLiteLedger) *Handler {
	return &Handler{
		sessions: sessions,
		ledger:   ledger,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.DELETE("/v1/sessions/:id", h.CloseSession)
	e.POST("/v1/sessions/:id/reset", h.ResetSession)

	e.POST("/v1/sessions/:id/messages", h.PostMessage)
	e.GET("/v1/sessions/:id/context", h.GetContext)
	e.GET("/v1/sessions/:id/transcript", h.GetTranscript)
	e.GET("/v1/sessions/:id/tool_calls", h.GetToolCalls)

	e.GET("/v1/sessions/:id/workflows", h.ListWorkflows)
	e.POST("/v1/sessions/:id/workflows/:workflow_id/refresh", h.RefreshWorkflow)
	e.GET("/v1/sessions/:id/executions", h.ListExecutions)
	e.PUT("/v1/sessions/:id/execution/:execution_id", h.SetExecution)
	e.DELETE("/v1/sessions/:id/execution", h.ClearExecution)

	e.GET("/v1/snippets", h.GetSnippets)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// GetSnippets returns the workflow-JSON snippet catalog.
func (h *Handler) GetSnippets(c echo.Context) error {
	return c.JSON(http.StatusOK, snippets.Catalog())
}

// errorJSON maps domain errors to HTTP statuses. Remote-instance
// failures keep their normalized kind in the body so the client can
// render them distinctly.
func errorJSON(c echo.Context, err error) error {
	var toolErr *domain.ToolError
	if errors.As(err, &toolErr) {
		status := http.StatusBadGateway
		switch toolErr.Kind {
		case domain.ToolErrorAuth:
			status = http.StatusUnauthorized
		case domain.ToolErrorNotFound:
			status = http.StatusNotFound
		case domain.ToolErrorRateLimited:
			status = http.StatusTooManyRequests
		case domain.ToolErrorInvalidArgs:
			status = http.StatusBadRequest
		}
		return c.JSON(status, map[string]string{"error": toolErr.Message, "kind": string(toolErr.Kind)})
	}
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrConcurrentTurn):
		return c.JSON(http.StatusConflict, map[string]string{"error": "a turn is already in flight for this session"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
