package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	boardapi "github.com/taskflow/taskflow/internal/board/api"
	"github.com/taskflow/taskflow/internal/board/service"
	"github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/logger"
	ws "github.com/taskflow/taskflow/pkg/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// BoardSubscriber opens live queries on boards.
type BoardSubscriber interface {
	Subscribe(ctx context.Context, actorID, boardID string, fn service.SnapshotFunc) (func(), error)
}

// Client is one authenticated WebSocket connection.
type Client struct {
	ID     string
	userID string
	conn   *websocket.Conn
	hub    *Hub
	boards BoardSubscriber
	send   chan []byte

	mu            sync.Mutex
	subscriptions map[string]func() // board id -> unsubscribe
	closed        bool
	done          chan struct{}
	closeOnce     sync.Once

	logger *logger.Logger
}

// NewClient creates a new WebSocket client
func NewClient(id, userID string, conn *websocket.Conn, hub *Hub, boards BoardSubscriber, log *logger.Logger) *Client {
	return &Client{
		ID:            id,
		userID:        userID,
		conn:          conn,
		hub:           hub,
		boards:        boards,
		send:          make(chan []byte, 64),
		subscriptions: make(map[string]func()),
		done:          make(chan struct{}),
		logger:        log.WithFields(zap.String("client_id", id), zap.String("user_id", userID)),
	}
}

// close ends every live query and stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		subs := c.subscriptions
		c.subscriptions = make(map[string]func())
		c.mu.Unlock()

		for _, unsubscribe := range subs {
			unsubscribe()
		}
		close(c.done)
	})
}

// ReadPump reads requests until the connection fails or ctx is done.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg ws.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("Invalid message", zap.Error(err))
			c.sendError("", "", ws.ErrorCodeBadRequest, "Invalid message format")
			continue
		}
		c.handleMessage(ctx, &msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *ws.Message) {
	c.logger.Debug("Received message", zap.String("action", msg.Action), zap.String("id", msg.ID))

	switch msg.Action {
	case ws.ActionBoardSubscribe:
		c.handleSubscribe(ctx, msg)
	case ws.ActionBoardUnsubscribe:
		c.handleUnsubscribe(msg)
	case ws.ActionHealthCheck:
		c.respond(msg, map[string]interface{}{"status": "ok"})
	default:
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeUnknownAction, "unknown action '"+msg.Action+"'")
	}
}

func (c *Client) boardID(msg *ws.Message) (string, bool) {
	var req ws.BoardPayload
	if err := msg.ParsePayload(&req); err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error())
		return "", false
	}
	if req.BoardID == "" {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "board_id is required")
		return "", false
	}
	return req.BoardID, true
}

// handleSubscribe opens a live query. The first snapshot follows the response.
func (c *Client) handleSubscribe(ctx context.Context, msg *ws.Message) {
	boardID, ok := c.boardID(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	_, exists := c.subscriptions[boardID]
	c.mu.Unlock()
	if exists {
		c.respond(msg, ws.BoardPayload{BoardID: boardID})
		return
	}

	// Hold back snapshots until the subscription is recorded so the response
	// always precedes them.
	ready := make(chan struct{})
	unsubscribe, err := c.boards.Subscribe(ctx, c.userID, boardID, func(snap *service.Snapshot, err error) {
		select {
		case <-ready:
		case <-c.done:
			return
		}
		c.deliver(boardID, snap, err)
	})
	if err != nil {
		code := ws.ErrorCodeInternalError
		if appErr := errors.As(err); appErr != nil {
			code = appErr.Code
		}
		c.sendError(msg.ID, msg.Action, code, errorMessage(err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.subscriptions[boardID] = unsubscribe
	c.mu.Unlock()

	c.respond(msg, ws.BoardPayload{BoardID: boardID})
	close(ready)
	c.logger.Debug("Subscribed to board", zap.String("board_id", boardID))
}

func (c *Client) handleUnsubscribe(msg *ws.Message) {
	boardID, ok := c.boardID(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	unsubscribe, exists := c.subscriptions[boardID]
	delete(c.subscriptions, boardID)
	c.mu.Unlock()
	if exists {
		unsubscribe()
	}

	c.respond(msg, ws.BoardPayload{BoardID: boardID})
	c.logger.Debug("Unsubscribed from board", zap.String("board_id", boardID))
}

// deliver pushes one live-query result to the peer.
func (c *Client) deliver(boardID string, snap *service.Snapshot, err error) {
	if err == nil {
		msg, merr := ws.NewNotification(ws.ActionBoardSnapshot, boardapi.SnapshotToResponse(snap, c.userID))
		if merr != nil {
			c.logger.Error("Failed to build snapshot notification", zap.Error(merr))
			return
		}
		c.sendMessage(msg)
		return
	}

	if !errors.IsNotFound(err) && !errors.IsForbidden(err) {
		// The live query keeps running and retries on the next change.
		return
	}

	c.mu.Lock()
	delete(c.subscriptions, boardID)
	c.mu.Unlock()

	msg, merr := ws.NewNotification(ws.ActionBoardClosed, map[string]interface{}{
		"board_id": boardID,
		"reason":   errorMessage(err),
	})
	if merr == nil {
		c.sendMessage(msg)
	}
}

func errorMessage(err error) string {
	if appErr := errors.As(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}

func (c *Client) respond(req *ws.Message, payload interface{}) {
	msg, err := ws.NewResponse(req.ID, req.Action, payload)
	if err != nil {
		c.logger.Error("Failed to build response", zap.Error(err))
		return
	}
	c.sendMessage(msg)
}

func (c *Client) sendMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("Client send buffer full, dropping message", zap.String("action", msg.Action))
	}
}

func (c *Client) sendError(id, action, code, message string) {
	msg, err := ws.NewError(id, action, code, message, nil)
	if err != nil {
		c.logger.Error("Failed to create error message", zap.Error(err))
		return
	}
	c.sendMessage(msg)
}

// WritePump writes queued messages and pings until the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
