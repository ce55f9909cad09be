package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screen-relay/backend/internal/model"
)

// RoomID derives a stable room id from a room name, so a restarted relay
// finds the positions it stored under the same name.
func RoomID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("screen-relay:"+name)).String()
}

// ServiceConfig holds configuration for the relay service.
type ServiceConfig struct {
	RoomID        string
	ScreenSegment string
	Heartbeat     HeartbeatConfig

	// Now overrides the heartbeat clock in tests.
	Now func() time.Time
}

// Service owns the room and the connection handler.
type Service struct {
	room    *Room
	handler *Handler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewService creates a new relay service. Call Start before accepting connections.
func NewService(store PositionStore, cfg ServiceConfig) *Service {
	room := NewRoom(cfg.RoomID, store, NewHeartbeat(cfg.Heartbeat, cfg.Now))
	return &Service{
		room:    room,
		handler: NewHandler(room, cfg.ScreenSegment),
	}
}

// Start runs the room until ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.room.Run(ctx)
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// Room returns the relay's room.
func (s *Service) Room() *Room {
	return s.room
}

// RoomStats describes the room for the stats endpoint.
type RoomStats struct {
	RoomID       string           `json:"roomId"`
	Viewers      int              `json:"viewers"`
	ScreenOnline bool             `json:"screenOnline"`
	Heartbeat    string           `json:"heartbeat"`
	MissedPings  int              `json:"missedPings"`
	Positions    []model.Position `json:"positions"`
}

// Stats returns the current room state.
func (s *Service) Stats(ctx context.Context) (*RoomStats, error) {
	positions, err := s.room.Positions(ctx)
	if err != nil {
		return nil, err
	}

	return &RoomStats{
		RoomID:       s.room.ID(),
		Viewers:      s.room.Hub().ViewerCount(),
		ScreenOnline: s.room.Hub().ScreenOnline(),
		Heartbeat:    s.room.Heartbeat().State().String(),
		MissedPings:  s.room.Heartbeat().MissedPings(),
		Positions:    positions,
	}, nil
}

// Close stops the room and closes every connection.
func (s *Service) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-s.room.Done()
}
