package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"avatarkit/core"
	"avatarkit/handlers/chat"
	"avatarkit/metrics"
	"avatarkit/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 << 10
	writeTimeout   = 10 * time.Second
)

// Replier answers one chat message. *chat.ChatHandler implements it.
type Replier interface {
	Reply(ctx context.Context, message string) (*protocol.ChatResponse, error)
}

// WebSocketService runs the chat protocol over one websocket connection.
// Chat requests are answered concurrently; replies carry the request's id.
type WebSocketService struct {
	conn    *websocket.Conn
	replier Replier
	logger  *core.Logger

	mu      sync.Mutex // protects writes
	pending sync.WaitGroup
}

// NewWebSocketService creates a new WebSocketService with an existing connection
func NewWebSocketService(conn *websocket.Conn, replier Replier, logger *core.Logger) *WebSocketService {
	if logger == nil {
		logger = core.GetLogger()
	}
	conn.SetReadLimit(maxMessageSize)
	return &WebSocketService{
		conn:    conn,
		replier: replier,
		logger:  logger,
	}
}

// Send writes one envelope to the client.
func (ws *WebSocketService) Send(msgType protocol.MessageType, id string, payload interface{}) error {
	data, err := protocol.Marshal(msgType, id, payload)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn == nil {
		return websocket.ErrCloseSent
	}
	ws.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

// Serve reads envelopes until the client disconnects or ctx ends, then waits
// for in-flight replies. A normal close returns nil.
func (ws *WebSocketService) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		ws.pending.Wait()
	}()

	stop := context.AfterFunc(ctx, func() {
		ws.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		messageType, msg, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage {
			ws.sendError("", protocol.ErrorResponse{Error: "binary messages are not supported"})
			continue
		}

		env, err := protocol.Unmarshal(msg)
		if err != nil {
			ws.sendError("", protocol.ErrorResponse{Error: "invalid message", Detail: err.Error()})
			continue
		}

		switch env.Type {
		case protocol.MsgPing:
			ws.sendOrLog(protocol.MsgPong, env.ID, nil)
		case protocol.MsgChat:
			req, err := protocol.UnmarshalPayload[protocol.ChatRequest](env.Payload)
			if err != nil {
				ws.sendError(env.ID, protocol.ErrorResponse{Error: "invalid chat payload", Detail: err.Error()})
				continue
			}
			ws.pending.Add(1)
			go func() {
				defer ws.pending.Done()
				ws.handleChat(ctx, env.ID, req)
			}()
		default:
			ws.sendError(env.ID, protocol.ErrorResponse{Error: "unsupported message type", Detail: string(env.Type)})
		}
	}
}

func (ws *WebSocketService) handleChat(ctx context.Context, id string, req protocol.ChatRequest) {
	resp, err := ws.replier.Reply(ctx, req.Message)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ws.logger.Error("websocket: reply failed", "id", id, "error", err)
		_, body := chat.ErrorResponse(err)
		ws.sendError(id, body)
		return
	}
	ws.sendOrLog(protocol.MsgMessages, id, resp)
}

func (ws *WebSocketService) sendError(id string, body protocol.ErrorResponse) {
	ws.sendOrLog(protocol.MsgError, id, body)
}

func (ws *WebSocketService) sendOrLog(msgType protocol.MessageType, id string, payload interface{}) {
	if err := ws.Send(msgType, id, payload); err != nil {
		ws.logger.Warn("websocket: send failed", "type", msgType, "error", err)
	}
}

// Close shuts down the WebSocket connection
func (ws *WebSocketService) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn == nil {
		return nil
	}
	ws.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := ws.conn.Close()
	ws.conn = nil
	return err
}

// Handler upgrades GET /ws requests and serves the chat protocol on them.
type Handler struct {
	upgrader websocket.Upgrader
	replier  Replier
	logger   *core.Logger
}

// NewHandler creates a websocket handler. Origins are not checked; CORS is
// the server's concern.
func NewHandler(replier Replier, logger *core.Logger) *Handler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		replier: replier,
		logger:  logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Warn("websocket: upgrade failed", "error", err)
		return
	}

	logger := core.LoggerFromContext(r.Context()).With(map[string]interface{}{
		"connection_id": uuid.NewString(),
	})
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	ws := NewWebSocketService(conn, h.replier, logger)
	defer ws.Close()

	logger.Info("websocket: client connected", "remote", r.RemoteAddr)
	ctx := core.ContextWithRequestLogger(r.Context(), logger)
	if err := ws.Serve(ctx); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logger.Warn("websocket: connection ended", "error", err)
		return
	}
	logger.Info("websocket: client disconnected")
}
