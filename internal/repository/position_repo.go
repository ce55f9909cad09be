package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/screen-relay/backend/internal/db"
	"github.com/screen-relay/backend/internal/model"
)

// PositionRepository is the durable key-value store for viewer positions.
// Every key it touches is scoped to a single room id.
type PositionRepository struct {
	db      *sql.DB
	dialect db.Dialect
	roomID  string
}

// NewPositionRepository creates a new PositionRepository for the given room.
func NewPositionRepository(database *sql.DB, dialect db.Dialect, roomID string) *PositionRepository {
	return &PositionRepository{db: database, dialect: dialect, roomID: roomID}
}

// RoomID returns the room the repository is scoped to.
func (r *PositionRepository) RoomID() string {
	return r.roomID
}

// Get retrieves the position stored under key.
// It returns model.ErrPositionNotFound if the key is absent.
func (r *PositionRepository) Get(ctx context.Context, key string) (*model.Position, error) {
	query := `SELECT x, y FROM positions WHERE room_id = ? AND pos_key = ?`

	pos := &model.Position{}
	err := r.db.QueryRowContext(ctx, query, r.roomID, key).Scan(&pos.X, &pos.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return pos, nil
}

// Put inserts or replaces the position stored under key.
func (r *PositionRepository) Put(ctx context.Context, key string, pos model.Position) error {
	query := `
		INSERT INTO positions (room_id, pos_key, x, y, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_id, pos_key) DO UPDATE SET x = excluded.x, y = excluded.y, updated_at = excluded.updated_at
	`
	if r.dialect == db.DialectMySQL {
		query = `
		INSERT INTO positions (room_id, pos_key, x, y, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE x = VALUES(x), y = VALUES(y), updated_at = VALUES(updated_at)
	`
	}

	if _, err := r.db.ExecContext(ctx, query, r.roomID, key, pos.X, pos.Y, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to put position: %w", err)
	}

	return nil
}

// Delete removes the position stored under key. Deleting an absent key is not an error.
func (r *PositionRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM positions WHERE room_id = ? AND pos_key = ?`

	if _, err := r.db.ExecContext(ctx, query, r.roomID, key); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	return nil
}

// Clear removes every position stored for the room and returns how many were removed.
func (r *PositionRepository) Clear(ctx context.Context) (int64, error) {
	query := `DELETE FROM positions WHERE room_id = ?`

	result, err := r.db.ExecContext(ctx, query, r.roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear positions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Count returns the number of positions stored for the room.
func (r *PositionRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM positions WHERE room_id = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, r.roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}

	return count, nil
}
