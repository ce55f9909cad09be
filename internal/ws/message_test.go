package ws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screen-relay/backend/internal/model"
)

// **Feature: screen-relay, Property 2: validation boundary**
// Every (x, y) on the 16x16 grid decodes to a position update; every
// coordinate off the grid is rejected with ErrInvalidMessage.
func TestDecodeViewerMessageProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("on-grid coordinates decode", prop.ForAll(
		func(x, y int) bool {
			msg, err := DecodeViewerMessage([]byte(fmt.Sprintf(`{"x":%d,"y":%d}`, x, y)))
			return err == nil && msg.Kind == ViewerPosition && msg.Position == model.Position{X: x, Y: y}
		},
		gen.IntRange(0, model.GridSize-1),
		gen.IntRange(0, model.GridSize-1),
	))

	properties.Property("off-grid coordinates are rejected", prop.ForAll(
		func(x, y int) bool {
			_, err := DecodeViewerMessage([]byte(fmt.Sprintf(`{"x":%d,"y":%d}`, x, y)))
			return errors.Is(err, model.ErrInvalidMessage)
		},
		gen.IntRange(-1000, 1000).SuchThat(func(v int) bool { return v < 0 || v >= model.GridSize }),
		gen.IntRange(0, model.GridSize-1),
	))

	properties.Property("end wins over coordinates", prop.ForAll(
		func(x, y int) bool {
			msg, err := DecodeViewerMessage([]byte(fmt.Sprintf(`{"end":true,"x":%d,"y":%d}`, x, y)))
			return err == nil && msg.Kind == ViewerEnd
		},
		gen.Int(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestDecodeViewerMessage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ViewerMessage
		wantErr bool
	}{
		{name: "origin", payload: `{"x":0,"y":0}`, want: ViewerMessage{Kind: ViewerPosition}},
		{name: "far corner", payload: `{"x":15,"y":15}`, want: ViewerMessage{Kind: ViewerPosition, Position: model.Position{X: 15, Y: 15}}},
		{name: "end", payload: `{"end":true}`, want: ViewerMessage{Kind: ViewerEnd}},
		{name: "x at grid size", payload: `{"x":16,"y":0}`, wantErr: true},
		{name: "y at grid size", payload: `{"x":0,"y":16}`, wantErr: true},
		{name: "negative x", payload: `{"x":-1,"y":0}`, wantErr: true},
		{name: "missing y", payload: `{"x":1}`, wantErr: true},
		{name: "missing both", payload: `{}`, wantErr: true},
		{name: "null", payload: `null`, wantErr: true},
		{name: "non-numeric x", payload: `{"x":"1","y":0}`, wantErr: true},
		{name: "array", payload: `[1,2]`, wantErr: true},
		{name: "fractional y", payload: `{"x":1,"y":0.5}`, wantErr: true},
		{name: "truncated", payload: `{"x":1,`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeViewerMessage([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		msg  Outbound
		want string
		kind MessageKind
	}{
		{name: "presence", msg: PresenceEvent{ScreenOnline: true}, want: `{"screenOnline":true}`, kind: KindPresence},
		{name: "offline", msg: PresenceEvent{}, want: `{"screenOnline":false}`, kind: KindPresence},
		{name: "empty snapshot", msg: PositionSnapshot{}, want: `{"positions":[]}`, kind: KindSnapshot},
		{
			name: "snapshot",
			msg:  PositionSnapshot{Positions: []model.Position{{X: 1, Y: 2}, {X: 3, Y: 4}}},
			want: `{"positions":[{"x":1,"y":2},{"x":3,"y":4}]}`,
			kind: KindSnapshot,
		},
		{name: "error", msg: NewErrorReply(model.ErrInvalidMessage), want: `{"error":"Something went wrong: invalid message"}`, kind: KindError},
		{name: "ping", msg: PingProbe{Ping: true}, want: `{"ping":true}`, kind: KindPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
			assert.Equal(t, tt.kind, tt.msg.Kind())
		})
	}
}

func TestDecodeViewerMessage_ErrorText(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{payload: `{"x":"a","y":0}`, want: "invalid message: x must be an integer"},
		{payload: `{"x":1,"y":2.5}`, want: "invalid message: y must be an integer"},
		{payload: `hello`, want: "invalid message: malformed JSON"},
		{payload: `[1,2]`, want: "invalid message: malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			_, err := DecodeViewerMessage([]byte(tt.payload))
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.NotContains(t, err.Error(), "Go struct")
		})
	}
}
