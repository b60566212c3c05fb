package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/anshulyadav1976/n8n-copilot/internal/domain"
	"github.com/anshulyadav1976/n8n-copilot/internal/session"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	maxMessage   = 1 << 16
)

// inboundMessage is what a subscriber may send over the socket.
type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// outboundError is pushed to a subscriber on a failed request.
type outboundError struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// turnResultMessage carries a finished turn back over the socket.
type turnResultMessage struct {
	Type   string             `json:"type"`
	Ts     int64              `json:"ts"`
	Result *domain.TurnResult `json:"result"`
}

// Server upgrades event-stream requests and drives the read/write
// pumps. Incoming "message" frames start a turn on the bound session;
// turn events flow back through the hub.
type Server struct {
	hub      *Hub
	sessions *session.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket server on top of the hub.
func NewServer(h *Hub, sessions *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:      h,
		sessions: sessions,
		logger:   logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleEvents upgrades the request and subscribes it to the
// session's event stream.
func (s *Server) HandleEvents(c echo.Context) error {
	sessionID := c.Param("id")
	if _, err := s.sessions.Get(sessionID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws, sessionID)
	s.hub.Register(conn)
	ws.SetReadLimit(maxMessage)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			break
		}
		s.handleMessage(conn, data)
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *Connection, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "invalid_message", "invalid JSON message")
		return
	}

	switch msg.Type {
	case "message":
		if msg.Text == "" {
			s.sendError(conn, "invalid_message", "text is required")
			return
		}
		s.startTurn(conn, msg.Text)
	case "ping":
		// Application-level keepalive, nothing to do.
	default:
		s.sendError(conn, "invalid_message", "unknown message type: "+msg.Type)
	}
}

// startTurn runs the turn off the read pump so the socket stays
// responsive. The result comes back as one frame; intermediate events
// arrive through the hub.
func (s *Server) startTurn(conn *Connection, text string) {
	sess, err := s.sessions.Get(conn.SessionID)
	if err != nil {
		s.sendError(conn, "session_not_found", "session is gone")
		return
	}

	go func() {
		result, err := sess.HandleUserMessage(context.Background(), text)
		if err != nil {
			code := "turn_failed"
			if errors.Is(err, domain.ErrConcurrentTurn) {
				code = "concurrent_turn"
			}
			s.sendError(conn, code, err.Error())
			return
		}
		s.sendJSON(conn, turnResultMessage{
			Type:   "turn_result",
			Ts:     time.Now().UnixMilli(),
			Result: result,
		})
	}()
}

func (s *Server) sendError(conn *Connection, code, message string) {
	s.sendJSON(conn, outboundError{
		Type:    "error",
		Ts:      time.Now().UnixMilli(),
		Code:    code,
		Message: message,
	})
}

func (s *Server) sendJSON(conn *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case conn.Send <- data:
	default:
		s.logger.Warn("subscriber buffer full, dropping frame", "conn", conn.ID)
	}
}
