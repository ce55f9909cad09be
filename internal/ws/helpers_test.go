package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/screen-relay/backend/internal/model"
)

// memStore is an in-memory PositionStore.
type memStore struct {
	mu        sync.Mutex
	positions map[string]model.Position
	err       error
}

func newMemStore() *memStore {
	return &memStore{positions: make(map[string]model.Position)}
}

func (s *memStore) Get(ctx context.Context, key string) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	pos, ok := s.positions[key]
	if !ok {
		return nil, model.ErrPositionNotFound
	}
	return &pos, nil
}

func (s *memStore) Put(ctx context.Context, key string, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.positions[key] = pos
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.positions, key)
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[key]
	return ok
}

func (s *memStore) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

var errStoreDown = errors.New("store unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func startRoom(t *testing.T, store PositionStore, now func() time.Time) *Room {
	t.Helper()

	room := NewRoom("test-room", store, NewHeartbeat(DefaultHeartbeatConfig(), now))
	ctx, cancel := context.WithCancel(context.Background())
	go room.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-room.Done()
	})
	return room
}

// drain returns every message queued for client without blocking.
func drain(client *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-client.SendChan():
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func join(t *testing.T, room *Room, role Role) *Client {
	t.Helper()
	client := NewClient(nil, role)
	if err := room.Join(context.Background(), client); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	return client
}

func deliver(t *testing.T, room *Room, client *Client, data string) {
	t.Helper()
	if err := room.Deliver(context.Background(), client, []byte(data)); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
}
