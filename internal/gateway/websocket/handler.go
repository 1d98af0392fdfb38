package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/httpmw"
	"github.com/taskflow/taskflow/internal/common/logger"
)

// Handler upgrades authenticated requests to live-board connections.
type Handler struct {
	hub      *Hub
	boards   BoardSubscriber
	upgrader gorillaws.Upgrader
	logger   *logger.Logger
}

// NewHandler creates a new WebSocket handler. checkOrigin may be nil to accept
// any origin.
func NewHandler(hub *Hub, boards BoardSubscriber, checkOrigin func(r *http.Request) bool, log *logger.Logger) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:    hub,
		boards: boards,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: log.WithFields(zap.String("component", "ws_handler")),
	}
}

// HandleConnection serves one socket until either side closes it. The route
// must sit behind httpmw.Authenticate.
// GET /api/v1/ws?token=
func (h *Handler) HandleConnection(c *gin.Context) {
	userID := httpmw.UserID(c)
	if userID == "" {
		_ = c.Error(errors.Unauthorized("authentication required"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), userID, conn, h.hub, h.boards, h.logger)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}

	h.logger.Debug("WebSocket connection established",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", c.Request.RemoteAddr))

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

// SetupRoutes registers the socket endpoint on an authenticated group.
func SetupRoutes(router *gin.RouterGroup, handler *Handler) {
	router.GET("/ws", handler.HandleConnection)
}
