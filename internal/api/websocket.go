package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocket message types for the progress protocol
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every frame.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error frame.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProgressSocketHandlerImpl pushes session status frames until the session
// finishes.
type ProgressSocketHandlerImpl struct {
	sessionMgr SessionManager
	upgrader   websocket.Upgrader
	interval   time.Duration
}

// NewProgressSocketHandler creates a new WebSocket progress handler
func NewProgressSocketHandler(sessionMgr SessionManager) ProgressSocketHandler {
	return &ProgressSocketHandlerImpl{
		sessionMgr: sessionMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		interval: progressInterval,
	}
}

// conn serializes writes from the push loop and the ping replies.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	return c.ws.WriteJSON(msg)
}

func (c *conn) sendError(id, message, code string) error {
	return c.send(WSMessage{
		Type:    MsgTypeError,
		ID:      id,
		Payload: mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
}

// HandleProgressSocket upgrades the connection and streams progress
func (h *ProgressSocketHandlerImpl) HandleProgressSocket(c echo.Context) error {
	id := c.Param("sessionId")

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	cn := &conn{ws: ws}

	log.Debug().Str("session", id).Msg("progress socket connected")
	if err := cn.send(WSMessage{Type: MsgTypeConnected, ID: id}); err != nil {
		return nil
	}

	// Reads run until the client goes away; they answer pings.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("session", id).Msg("progress socket read failed")
				}
				return
			}
			switch msg.Type {
			case MsgTypePing:
				cn.send(WSMessage{Type: MsgTypePong, ID: id})
			default:
				cn.sendError(id, "Unknown message type: "+msg.Type, "INVALID_TYPE")
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	timeout := time.NewTimer(progressTimeout)
	defer timeout.Stop()

	for {
		sess, ok := h.sessionMgr.GetSession(id)
		if !ok {
			cn.sendError(id, "session not found", "SESSION_NOT_FOUND")
			return nil
		}

		msgType := MsgTypeProgress
		if sess.Status.Finished() {
			msgType = MsgTypeComplete
		}
		if err := cn.send(WSMessage{Type: msgType, ID: id, Payload: mustJSON(sess)}); err != nil {
			return nil
		}
		if sess.Status.Finished() {
			cn.mu.Lock()
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			cn.mu.Unlock()
			return nil
		}

		select {
		case <-ticker.C:
		case <-closed:
			return nil
		case <-timeout.C:
			cn.sendError(id, "stream timeout", "TIMEOUT")
			return nil
		}
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
