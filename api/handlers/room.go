// Package handlers provides HTTP API request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screen-relay/backend/internal/ws"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// RoomHandler serves the read-only room endpoints.
type RoomHandler struct {
	service *ws.Service
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(service *ws.Service) *RoomHandler {
	return &RoomHandler{service: service}
}

// Get handles GET /api/room - returns membership, screen liveness and positions.
func (h *RoomHandler) Get(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read room: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Activity handles GET /api/room/activity - returns recent joins, leaves and prunes.
func (h *RoomHandler) Activity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"activity": h.service.Room().Activity(),
	})
}

// RegisterRoutes registers the room routes on a Gin router group.
func (h *RoomHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/room", h.Get)
	rg.GET("/room/activity", h.Activity)
}
