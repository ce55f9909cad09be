package model

import "errors"

var (
	// ErrInvalidMessage is returned when a viewer message is neither a valid
	// position update nor an end marker.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrPositionNotFound is returned when no position is stored for a key.
	ErrPositionNotFound = errors.New("position not found")
)
