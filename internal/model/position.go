// Package model holds the data types shared by the relay packages.
package model

import "fmt"

// GridSize is the exclusive upper bound for both position coordinates.
const GridSize = 16

// KeyPrefix prefixes every position key in the store.
const KeyPrefix = "pos"

// Position is a viewer's cell on the shared grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Validate checks that both coordinates lie on the grid.
func (p Position) Validate() error {
	if p.X < 0 || p.X >= GridSize || p.Y < 0 || p.Y >= GridSize {
		return fmt.Errorf("%w: position (%d, %d) outside %dx%d grid", ErrInvalidMessage, p.X, p.Y, GridSize, GridSize)
	}
	return nil
}

// PositionKey returns the store key for a connection id.
func PositionKey(connectionID string) string {
	return KeyPrefix + connectionID
}
