package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anshulyadav1976/n8n-copilot/internal/adapter/n8nreader"
)

// CreateSessionRequest carries the instance credentials. The API key
// is held by the session's client for its lifetime and never stored
// or echoed back.
type CreateSessionRequest struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// CreateSession validates the credentials and opens a session.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.BaseURL == "" || req.APIKey == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "base_url and api_key are required"})
	}

	sess, err := h.sessions.Connect(c.Request().Context(), req.BaseURL, req.APIKey)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// CloseSession drops a session and cancels any in-flight turn.
// DELETE /v1/sessions/:id
func (h *Handler) CloseSession(c echo.Context) error {
	h.sessions.Close(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// ResetSession clears all conversation state but keeps the connection.
// POST /v1/sessions/:id/reset
func (h *Handler) ResetSession(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	sess.Reset()
	return c.JSON(http.StatusOK, sess.Summary())
}

// GetContext returns the bounded context summary.
// GET /v1/sessions/:id/context
func (h *Handler) GetContext(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, sess.Summary())
}

// ListWorkflows lists workflows on the connected instance.
// GET /v1/sessions/:id/workflows?name=
func (h *Handler) ListWorkflows(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	workflows, err := sess.Reader().ListWorkflows(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"workflows": workflows})
}

// RefreshWorkflow fetches the workflow and makes it the active
// snapshot. The response includes the structural diff against the
// prior snapshot when there is one.
// POST /v1/sessions/:id/workflows/:workflow_id/refresh
func (h *Handler) RefreshWorkflow(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	diff, err := sess.RefreshWorkflow(c.Request().Context(), c.Param("workflow_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"context": sess.Summary(),
		"diff":    diff,
	})
}

// ListExecutions lists executions on the connected instance.
// GET /v1/sessions/:id/executions?workflow_id=&status=&limit=
func (h *Handler) ListExecutions(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	filter := n8nreader.ListExecutionsFilter{
		WorkflowID: c.QueryParam("workflow_id"),
		Status:     c.QueryParam("status"),
	}
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			filter.Limit = val
		}
	}
	executions, err := sess.Reader().ListExecutions(c.Request().Context(), filter)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"executions": executions})
}

// SetExecution fetches an execution and pins it as the active one.
// PUT /v1/sessions/:id/execution/:execution_id
func (h *Handler) SetExecution(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	if _, err := sess.SetExecution(c.Request().Context(), c.Param("execution_id")); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, sess.Summary())
}

// ClearExecution unpins the active execution. Idempotent.
// DELETE /v1/sessions/:id/execution
func (h *Handler) ClearExecution(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	sess.ClearExecution()
	return c.JSON(http.StatusOK, sess.Summary())
}
