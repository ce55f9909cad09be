package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// DefaultScreenSegment is the first path segment that marks the screen.
const DefaultScreenSegment = "ob"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler accepts WebSocket connections and hands them to a room.
type Handler struct {
	room          *Room
	screenSegment string
}

// NewHandler creates a new WebSocket handler.
func NewHandler(room *Room, screenSegment string) *Handler {
	if screenSegment == "" {
		screenSegment = DefaultScreenSegment
	}
	return &Handler{
		room:          room,
		screenSegment: screenSegment,
	}
}

// Classify returns the role of a connection from its request path: the
// screen segment as first path segment marks the screen, anything else a viewer.
func (h *Handler) Classify(path string) Role {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == h.screenSegment {
		return RoleScreen
	}
	return RoleViewer
}

// HandleConnection upgrades the request and joins the connection to the room.
// Requests without a WebSocket upgrade get 426 and never touch the room.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, path string) error {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected Upgrade: websocket", http.StatusUpgradeRequired)
		return nil
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, h.Classify(path))

	go h.writePump(client)

	// The request context ends with this handler; the connection outlives it.
	ctx := context.Background()
	if err := h.room.Join(ctx, client); err != nil {
		client.CloseWithStatus(websocket.CloseGoingAway, "relay shutting down")
		return err
	}

	go h.readPump(ctx, client)

	return nil
}

// readPump pumps messages from the WebSocket connection to the room.
func (h *Handler) readPump(ctx context.Context, client *Client) {
	defer func() {
		if err := h.room.Leave(ctx, client); err != nil && !errors.Is(err, ErrRoomClosed) {
			slog.Warn("leave failed", "clientId", client.ID(), "error", err)
		}
		client.Close()
		client.Conn().Close()
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "clientId", client.ID(), "role", client.Role(), "error", err)
			}
			break
		}

		if err := h.room.Deliver(ctx, client, message); err != nil {
			break
		}
	}
}

// writePump pumps queued messages to the WebSocket connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The room closed the channel
				code, text := client.closeStatus()
				client.Conn().WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}

			// One frame per message so clients can JSON.parse each frame
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// AllowOrigins returns an origin checker accepting the listed origins.
// Requests without an Origin header come from non-browser clients and pass;
// an empty list or "*" accepts everything.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		for _, allowed := range origins {
			if allowed == "*" || strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return false
	}
}
