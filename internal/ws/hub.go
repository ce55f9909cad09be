package ws

import (
	"errors"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrClientClosed is returned when sending to a client whose queue is closed.
	ErrClientClosed = errors.New("client closed")

	// ErrSendBufferFull is returned when a client's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Role tells the screen apart from viewers.
type Role string

const (
	RoleScreen Role = "screen"
	RoleViewer Role = "viewer"
)

const sendBufferSize = 256

// Client represents a WebSocket client connection.
type Client struct {
	id   string
	role Role
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	closed    bool
	quit      bool
	closeCode int
	closeText string
}

// NewClient creates a new WebSocket client. The id is assigned on registration.
func NewClient(conn *websocket.Conn, role Role) *Client {
	return &Client{
		role:      role,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		closeCode: websocket.CloseNormalClosure,
	}
}

// ID returns the id assigned by the hub, or "" before registration.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) setID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// Role returns the client's role.
func (c *Client) Role() Role {
	return c.role
}

// Send queues a message to be sent to the client.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, close the client
		c.closeLocked(websocket.CloseInternalServerErr, "send buffer full")
		return ErrSendBufferFull
	}
}

// Close closes the client's send queue; the write pump then sends a normal close frame.
func (c *Client) Close() {
	c.CloseWithStatus(websocket.CloseNormalClosure, "")
}

// CloseWithStatus closes the client's send queue; the write pump then sends
// a close frame carrying code and text.
func (c *Client) CloseWithStatus(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(code, text)
}

func (c *Client) closeLocked(code int, text string) {
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeText = text
	close(c.send)
}

// IsClosed returns true if the client is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// MarkQuit flags the client as logically removed pending cleanup.
func (c *Client) MarkQuit() {
	c.mu.Lock()
	c.quit = true
	c.mu.Unlock()
}

// Quit reports whether the client has been logically removed.
func (c *Client) Quit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quit
}

func (c *Client) closeStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeText
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// SendChan returns the send channel for the client.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Hub is the connection registry of a room: an ordered list of viewers and at
// most one screen. Only the room goroutine mutates it; reads from other
// goroutines go through the lock.
type Hub struct {
	mu      sync.RWMutex
	nextID  uint64
	viewers []*Client
	screen  *Client
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) assignIDLocked(client *Client) string {
	id := strconv.FormatUint(h.nextID, 10)
	h.nextID++
	client.setID(id)
	return id
}

// RegisterViewer assigns the client a fresh id and appends it to the viewer list.
// Ids come from a counter and are never reused.
func (h *Hub) RegisterViewer(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.assignIDLocked(client)
	h.viewers = append(h.viewers, client)
	return id
}

// RegisterScreen makes client the screen, replacing any previous one.
func (h *Hub) RegisterScreen(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.assignIDLocked(client)
	h.screen = client
	return id
}

// RemoveViewer marks the viewer with the given id as quit and drops it from
// the list. Removing an unknown id is a no-op.
func (h *Hub) RemoveViewer(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.viewers[:0]
	for _, client := range h.viewers {
		if client.ID() == id {
			client.MarkQuit()
			continue
		}
		kept = append(kept, client)
	}
	for i := len(kept); i < len(h.viewers); i++ {
		h.viewers[i] = nil
	}
	h.viewers = kept
}

// RemoveScreen clears the screen reference if it still points at client.
// It reports whether the reference was cleared.
func (h *Hub) RemoveScreen(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.screen == nil || h.screen != client {
		return false
	}
	client.MarkQuit()
	h.screen = nil
	return true
}

// Viewers returns a snapshot of the viewer list in registration order.
func (h *Hub) Viewers() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	viewers := make([]*Client, len(h.viewers))
	copy(viewers, h.viewers)
	return viewers
}

// Screen returns the current screen, or nil.
func (h *Hub) Screen() *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.screen
}

// ScreenOnline returns true if a screen is registered.
func (h *Hub) ScreenOnline() bool {
	return h.Screen() != nil
}

// ViewerCount returns the number of registered viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// BroadcastResult lists the clients pruned by a broadcast.
type BroadcastResult struct {
	PrunedViewers []*Client
	PrunedScreen  *Client
}

// Broadcast sends data to every viewer in order, then to the screen. Any
// client whose send fails is marked quit and removed from the hub.
func (h *Hub) Broadcast(data []byte) BroadcastResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	var result BroadcastResult

	kept := h.viewers[:0]
	for _, client := range h.viewers {
		if err := client.Send(data); err != nil {
			client.MarkQuit()
			result.PrunedViewers = append(result.PrunedViewers, client)
			continue
		}
		kept = append(kept, client)
	}
	for i := len(kept); i < len(h.viewers); i++ {
		h.viewers[i] = nil
	}
	h.viewers = kept

	if h.screen != nil {
		if err := h.screen.Send(data); err != nil {
			h.screen.MarkQuit()
			result.PrunedScreen = h.screen
			h.screen = nil
		}
	}

	return result
}

// BroadcastMessage encodes msg once and broadcasts it.
func (h *Hub) BroadcastMessage(msg Outbound) (BroadcastResult, error) {
	data, err := Encode(msg)
	if err != nil {
		return BroadcastResult{}, err
	}
	return h.Broadcast(data), nil
}

// Close closes every client and empties the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.viewers)+1)
	clients = append(clients, h.viewers...)
	if h.screen != nil {
		clients = append(clients, h.screen)
	}
	h.viewers = nil
	h.screen = nil
	h.mu.Unlock()

	for _, client := range clients {
		client.MarkQuit()
		client.CloseWithStatus(websocket.CloseGoingAway, "relay shutting down")
	}
}
