// Package buffer provides a bounded history for recent room activity.
package buffer

import (
	"sync"
)

// Ring is a thread-safe circular buffer holding the most recent items up to
// a fixed capacity. When it is full, the oldest item is discarded to make
// room for the new one.
type Ring[T any] struct {
	items    []T
	start    int
	capacity int
	mu       sync.RWMutex
}

// NewRing creates a Ring with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends item, overwriting the oldest one when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) < r.capacity {
		r.items = append(r.items, item)
		return
	}

	r.items[r.start] = item
	r.start = (r.start + 1) % r.capacity
}

// Items returns a copy of the buffered items, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.items) == 0 {
		return nil
	}

	result := make([]T, 0, len(r.items))
	result = append(result, r.items[r.start:]...)
	result = append(result, r.items[:r.start]...)
	return result
}

// Clear removes all items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = r.items[:0]
	r.start = 0
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() int {
	return r.capacity
}
