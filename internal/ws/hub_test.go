package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastOrder(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	v1 := NewClient(nil, RoleViewer)
	v2 := NewClient(nil, RoleViewer)
	screen := NewClient(nil, RoleScreen)

	assert.Equal(t, "0", hub.RegisterViewer(v1))
	assert.Equal(t, "1", hub.RegisterScreen(screen))
	assert.Equal(t, "2", hub.RegisterViewer(v2))

	result := hub.Broadcast([]byte("hello"))
	assert.Empty(t, result.PrunedViewers)
	assert.Nil(t, result.PrunedScreen)

	for _, c := range []*Client{v1, v2, screen} {
		assert.Equal(t, []string{"hello"}, drain(c))
	}

	viewers := hub.Viewers()
	require.Len(t, viewers, 2)
	assert.Same(t, v1, viewers[0])
	assert.Same(t, v2, viewers[1])
}

func TestHub_RemoveViewerIsIdempotent(t *testing.T) {
	hub := NewHub()
	v1 := NewClient(nil, RoleViewer)
	v2 := NewClient(nil, RoleViewer)
	hub.RegisterViewer(v1)
	hub.RegisterViewer(v2)

	hub.RemoveViewer(v1.ID())
	hub.RemoveViewer(v1.ID())
	hub.RemoveViewer("unknown")

	assert.True(t, v1.Quit())
	assert.False(t, v2.Quit())
	assert.Equal(t, 1, hub.ViewerCount())
}

func TestHub_RegisterScreenLastWriterWins(t *testing.T) {
	hub := NewHub()
	first := NewClient(nil, RoleScreen)
	second := NewClient(nil, RoleScreen)
	viewer := NewClient(nil, RoleViewer)

	hub.RegisterViewer(viewer)
	hub.RegisterScreen(first)
	hub.RegisterScreen(second)

	assert.Same(t, second, hub.Screen())
	assert.Equal(t, 1, hub.ViewerCount())

	assert.False(t, hub.RemoveScreen(first))
	assert.True(t, hub.RemoveScreen(second))
	assert.False(t, hub.ScreenOnline())
}

func TestHub_BroadcastPrunesFailedClients(t *testing.T) {
	hub := NewHub()
	healthy := NewClient(nil, RoleViewer)
	broken := NewClient(nil, RoleViewer)
	screen := NewClient(nil, RoleScreen)
	hub.RegisterViewer(broken)
	hub.RegisterViewer(healthy)
	hub.RegisterScreen(screen)

	broken.Close()
	screen.Close()

	result := hub.Broadcast([]byte("x"))

	require.Len(t, result.PrunedViewers, 1)
	assert.Same(t, broken, result.PrunedViewers[0])
	assert.Same(t, screen, result.PrunedScreen)
	assert.True(t, broken.Quit())
	assert.True(t, screen.Quit())
	assert.Equal(t, 1, hub.ViewerCount())
	assert.False(t, hub.ScreenOnline())
	assert.Equal(t, []string{"x"}, drain(healthy))
}

func TestClient_SendBufferFull(t *testing.T) {
	client := NewClient(nil, RoleViewer)

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, client.Send([]byte("m")))
	}

	assert.ErrorIs(t, client.Send([]byte("overflow")), ErrSendBufferFull)
	assert.True(t, client.IsClosed())
	assert.ErrorIs(t, client.Send([]byte("again")), ErrClientClosed)
}

func TestHub_CloseClosesEveryClient(t *testing.T) {
	hub := NewHub()
	viewer := NewClient(nil, RoleViewer)
	screen := NewClient(nil, RoleScreen)
	hub.RegisterViewer(viewer)
	hub.RegisterScreen(screen)

	hub.Close()

	assert.True(t, viewer.IsClosed())
	assert.True(t, screen.IsClosed())
	assert.Equal(t, 0, hub.ViewerCount())
	assert.Nil(t, hub.Screen())
}
