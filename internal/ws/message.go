package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/screen-relay/backend/internal/model"
)

// MessageKind enumerates the server -> client message variants.
type MessageKind int

const (
	KindPresence MessageKind = iota + 1
	KindSnapshot
	KindError
	KindPing
)

func (k MessageKind) String() string {
	switch k {
	case KindPresence:
		return "presence"
	case KindSnapshot:
		return "snapshot"
	case KindError:
		return "error"
	case KindPing:
		return "ping"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// Outbound is a message sent from the relay to a client.
type Outbound interface {
	Kind() MessageKind
}

// PresenceEvent announces whether the screen is reachable.
type PresenceEvent struct {
	ScreenOnline bool `json:"screenOnline"`
}

func (PresenceEvent) Kind() MessageKind { return KindPresence }

// PositionSnapshot carries every known viewer position in registry order.
type PositionSnapshot struct {
	Positions []model.Position `json:"positions"`
}

func (PositionSnapshot) Kind() MessageKind { return KindSnapshot }

// ErrorReply is sent only to the connection whose message failed.
type ErrorReply struct {
	Error string `json:"error"`
}

func (ErrorReply) Kind() MessageKind { return KindError }

// PingProbe asks the screen to prove it is alive by sending any message.
type PingProbe struct {
	Ping bool `json:"ping"`
}

func (PingProbe) Kind() MessageKind { return KindPing }

// Encode serializes an outbound message.
func Encode(msg Outbound) ([]byte, error) {
	if snap, ok := msg.(PositionSnapshot); ok && snap.Positions == nil {
		msg = PositionSnapshot{Positions: []model.Position{}}
	}
	return json.Marshal(msg)
}

// NewErrorReply wraps err in the reply sent back to the sender.
func NewErrorReply(err error) ErrorReply {
	return ErrorReply{Error: "Something went wrong: " + err.Error()}
}

// ViewerMessageKind enumerates the client -> server message variants.
type ViewerMessageKind int

const (
	ViewerPosition ViewerMessageKind = iota + 1
	ViewerEnd
)

// ViewerMessage is a decoded and validated viewer message.
type ViewerMessage struct {
	Kind     ViewerMessageKind
	Position model.Position
}

type viewerWire struct {
	X   *int `json:"x"`
	Y   *int `json:"y"`
	End bool `json:"end"`
}

// DecodeViewerMessage parses and validates a viewer message.
// A message is either {"end": true} or integer x and y on the grid.
func DecodeViewerMessage(data []byte) (ViewerMessage, error) {
	var wire viewerWire
	if err := json.Unmarshal(data, &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return ViewerMessage{}, fmt.Errorf("%w: %s must be an integer", model.ErrInvalidMessage, typeErr.Field)
		}
		return ViewerMessage{}, fmt.Errorf("%w: malformed JSON", model.ErrInvalidMessage)
	}

	if wire.End {
		return ViewerMessage{Kind: ViewerEnd}, nil
	}

	if wire.X == nil || wire.Y == nil {
		return ViewerMessage{}, model.ErrInvalidMessage
	}

	pos := model.Position{X: *wire.X, Y: *wire.Y}
	if err := pos.Validate(); err != nil {
		return ViewerMessage{}, err
	}

	return ViewerMessage{Kind: ViewerPosition, Position: pos}, nil
}
