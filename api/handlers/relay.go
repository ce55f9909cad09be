package handlers

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/screen-relay/backend/internal/ws"
)

// RelayHandler is the WebSocket entry point of the room.
type RelayHandler struct {
	wsHandler *ws.Handler
}

// NewRelayHandler creates a new RelayHandler.
func NewRelayHandler(wsHandler *ws.Handler) *RelayHandler {
	return &RelayHandler{wsHandler: wsHandler}
}

// Attach handles WS /relay/*path. The first segment of path picks the role.
func (h *RelayHandler) Attach(c *gin.Context) {
	err := h.wsHandler.HandleConnection(c.Writer, c.Request, c.Param("path"))
	switch {
	case err == nil:
	case errors.Is(err, ws.ErrRoomClosed):
		// Upgraded, then turned away with a going-away close frame
		slog.Info("connection refused, room closed", "path", c.Request.URL.Path)
	default:
		// Upgrade failures have already been answered over HTTP
		slog.Warn("websocket upgrade failed", "path", c.Request.URL.Path, "error", err)
	}
}

// RegisterRoutes registers the relay routes on a Gin router.
func (h *RelayHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/relay", h.Attach)
	r.GET("/relay/*path", h.Attach)
}
