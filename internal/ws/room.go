package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/screen-relay/backend/internal/buffer"
	"github.com/screen-relay/backend/internal/model"
)

// ErrRoomClosed is returned when an event is submitted to a stopped room.
var ErrRoomClosed = errors.New("room closed")

// PositionStore is the durable key-value store holding viewer positions.
// Get returns model.ErrPositionNotFound for an absent key.
type PositionStore interface {
	Get(ctx context.Context, key string) (*model.Position, error)
	Put(ctx context.Context, key string, pos model.Position) error
	Delete(ctx context.Context, key string) error
}

type eventKind int

const (
	eventJoin eventKind = iota
	eventMessage
	eventLeave
)

type event struct {
	kind   eventKind
	client *Client
	data   []byte
	done   chan struct{}
}

// Room owns the state shared by the screen and the viewers. All mutation
// happens on the goroutine running Run; Join, Deliver and Leave hand events
// to it and wait until they are handled.
type Room struct {
	id        string
	hub       *Hub
	heartbeat *Heartbeat
	store     PositionStore
	logger    *slog.Logger
	activity  *buffer.Ring[Activity]

	events  chan event
	stopped chan struct{}

	suspectLog rate.Sometimes
}

// NewRoom creates a room. Call Run to start processing events.
func NewRoom(id string, store PositionStore, heartbeat *Heartbeat) *Room {
	if heartbeat == nil {
		heartbeat = NewHeartbeat(DefaultHeartbeatConfig(), nil)
	}
	return &Room{
		id:         id,
		hub:        NewHub(),
		heartbeat:  heartbeat,
		store:      store,
		logger:     slog.Default().With("room", id),
		activity:   buffer.NewRing[Activity](activityHistory),
		events:     make(chan event),
		stopped:    make(chan struct{}),
		suspectLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// Hub returns the room's connection registry.
func (r *Room) Hub() *Hub {
	return r.hub
}

// Heartbeat returns the screen liveness monitor.
func (r *Room) Heartbeat() *Heartbeat {
	return r.heartbeat
}

// Run processes events until ctx is cancelled, then closes every client.
func (r *Room) Run(ctx context.Context) {
	defer close(r.stopped)
	defer r.hub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.handle(ctx, ev)
			close(ev.done)
		}
	}
}

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} {
	return r.stopped
}

// Join registers a new connection.
func (r *Room) Join(ctx context.Context, client *Client) error {
	return r.submit(ctx, event{kind: eventJoin, client: client})
}

// Deliver hands an inbound message from client to the room.
func (r *Room) Deliver(ctx context.Context, client *Client, data []byte) error {
	return r.submit(ctx, event{kind: eventMessage, client: client, data: data})
}

// Leave removes a connection after its transport closed or failed.
func (r *Room) Leave(ctx context.Context, client *Client) error {
	return r.submit(ctx, event{kind: eventLeave, client: client})
}

func (r *Room) submit(ctx context.Context, ev event) error {
	ev.done = make(chan struct{})

	select {
	case r.events <- ev:
	case <-r.stopped:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ev.done:
		return nil
	case <-r.stopped:
		return ErrRoomClosed
	}
}

func (r *Room) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventJoin:
		r.handleJoin(ev.client)
	case eventMessage:
		if ev.client.Role() == RoleScreen {
			r.handleScreenMessage(ev.client)
			return
		}
		r.handleViewerMessage(ctx, ev.client, ev.data)
	case eventLeave:
		r.handleLeave(ev.client)
	}
}

func (r *Room) handleJoin(client *Client) {
	if client.Role() == RoleScreen {
		previous := r.hub.Screen()
		id := r.hub.RegisterScreen(client)
		if previous != nil {
			previous.MarkQuit()
			r.record(ActivityReplaced, previous)
			r.logger.Info("screen replaced", "clientId", id, "previousId", previous.ID())
		}
		r.heartbeat.Start()
		r.record(ActivityConnected, client)
		r.logger.Info("screen connected", "clientId", id, "viewers", r.hub.ViewerCount())
		r.broadcast(PresenceEvent{ScreenOnline: true})
	} else {
		id := r.hub.RegisterViewer(client)
		r.record(ActivityConnected, client)
		r.logger.Info("viewer connected", "clientId", id, "viewers", r.hub.ViewerCount())
	}

	if r.hub.ScreenOnline() {
		r.reply(client, PresenceEvent{ScreenOnline: true})
	}
}

func (r *Room) handleScreenMessage(client *Client) {
	if client.Quit() {
		client.CloseWithStatus(websocket.CloseInternalServerErr, "WebSocket broken.")
		return
	}

	r.heartbeat.Pong()
	r.broadcast(PresenceEvent{ScreenOnline: true})
}

func (r *Room) handleViewerMessage(ctx context.Context, client *Client, data []byte) {
	r.checkHeartbeat()

	if client.Quit() {
		client.CloseWithStatus(websocket.CloseInternalServerErr, "WebSocket broken.")
		return
	}

	if err := r.applyViewerMessage(ctx, client, data); err != nil {
		r.logger.Debug("viewer message rejected", "clientId", client.ID(), "error", err)
		r.reply(client, NewErrorReply(err))
	}
}

func (r *Room) applyViewerMessage(ctx context.Context, client *Client, data []byte) error {
	msg, err := DecodeViewerMessage(data)
	if err != nil {
		return err
	}

	key := model.PositionKey(client.ID())
	switch msg.Kind {
	case ViewerEnd:
		if err := r.store.Delete(ctx, key); err != nil {
			return err
		}
	case ViewerPosition:
		if err := r.store.Put(ctx, key, msg.Position); err != nil {
			return err
		}
	}

	positions, err := r.Positions(ctx)
	if err != nil {
		return err
	}

	r.broadcast(PositionSnapshot{Positions: positions})
	return nil
}

// Positions reads the stored position of every registered viewer, in
// registration order, skipping viewers without one.
func (r *Room) Positions(ctx context.Context) ([]model.Position, error) {
	viewers := r.hub.Viewers()
	found := make([]*model.Position, len(viewers))

	g, gctx := errgroup.WithContext(ctx)
	for i, viewer := range viewers {
		i := i
		key := model.PositionKey(viewer.ID())
		g.Go(func() error {
			pos, err := r.store.Get(gctx, key)
			if errors.Is(err, model.ErrPositionNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	positions := make([]model.Position, 0, len(found))
	for _, pos := range found {
		if pos != nil {
			positions = append(positions, *pos)
		}
	}
	return positions, nil
}

func (r *Room) checkHeartbeat() {
	screen := r.hub.Screen()
	if screen == nil {
		return
	}

	switch r.heartbeat.Check() {
	case HeartbeatProbe:
		r.suspectLog.Do(func() {
			r.logger.Warn("screen silent, probing", "clientId", screen.ID(), "missedPings", r.heartbeat.MissedPings())
		})
		r.reply(screen, PingProbe{Ping: true})
	case HeartbeatDeclareDead:
		r.hub.RemoveScreen(screen)
		r.heartbeat.Stop()
		screen.CloseWithStatus(websocket.CloseGoingAway, "screen unresponsive")
		r.record(ActivityDeclaredDead, screen)
		r.logger.Warn("screen declared dead", "clientId", screen.ID())
		r.broadcast(PresenceEvent{ScreenOnline: false})
	}
}

func (r *Room) handleLeave(client *Client) {
	client.MarkQuit()

	if client.Role() == RoleScreen {
		if r.hub.RemoveScreen(client) {
			r.heartbeat.Stop()
		}
		r.record(ActivityDisconnected, client)
		r.logger.Info("screen disconnected", "clientId", client.ID())
		return
	}

	r.hub.RemoveViewer(client.ID())
	r.record(ActivityDisconnected, client)
	r.logger.Info("viewer disconnected", "clientId", client.ID(), "viewers", r.hub.ViewerCount())
}

// broadcast sends msg to the whole room and drops clients whose send failed.
func (r *Room) broadcast(msg Outbound) {
	result, err := r.hub.BroadcastMessage(msg)
	if err != nil {
		r.logger.Error("failed to encode broadcast", "kind", msg.Kind(), "error", err)
		return
	}

	for _, client := range result.PrunedViewers {
		r.record(ActivityPruned, client)
		r.logger.Info("viewer pruned", "clientId", client.ID())
	}
	if result.PrunedScreen != nil {
		r.heartbeat.Stop()
		r.record(ActivityPruned, result.PrunedScreen)
		r.logger.Info("screen pruned", "clientId", result.PrunedScreen.ID())
	}
}

// reply sends msg to a single client.
func (r *Room) reply(client *Client, msg Outbound) {
	data, err := Encode(msg)
	if err != nil {
		r.logger.Error("failed to encode reply", "kind", msg.Kind(), "error", err)
		return
	}

	if err := client.Send(data); err != nil {
		r.prune(client)
	}
}

func (r *Room) prune(client *Client) {
	if client.Role() == RoleScreen {
		if r.hub.RemoveScreen(client) {
			r.heartbeat.Stop()
			r.record(ActivityPruned, client)
			r.logger.Info("screen pruned", "clientId", client.ID())
		}
		return
	}

	r.hub.RemoveViewer(client.ID())
	r.record(ActivityPruned, client)
	r.logger.Info("viewer pruned", "clientId", client.ID())
}
