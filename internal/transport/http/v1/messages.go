package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// PostMessageRequest is one user message.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage runs one turn and returns its result. A message sent
// while a turn is in flight is rejected with 409.
// POST /v1/sessions/:id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}

	var req PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	result, err := sess.HandleUserMessage(c.Request().Context(), req.Text)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetTranscript returns the recorded conversation for a session.
// GET /v1/sessions/:id/transcript?limit=
func (h *Handler) GetTranscript(c echo.Context) error {
	sessionID := c.Param("id")
	if _, err := h.sessions.Get(sessionID); err != nil {
		return errorJSON(c, err)
	}

	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	messages, err := h.ledger.Transcript(c.Request().Context(), sessionID, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": messages})
}

// GetToolCalls returns the recorded tool-call ledger for a session.
// GET /v1/sessions/:id/tool_calls
func (h *Handler) GetToolCalls(c echo.Context) error {
	sessionID := c.Param("id")
	if _, err := h.sessions.Get(sessionID); err != nil {
		return errorJSON(c, err)
	}

	calls, err := h.ledger.ToolCalls(c.Request().Context(), sessionID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tool_calls": calls})
}
