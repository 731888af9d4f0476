package store

import (
	"context"
	"errors"
	"fmt"

	"example.com/codenames/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomStore maps lobby codes (the room ids clients connect with) to rows.
type RoomStore struct {
	db *pgxpool.Pool
}

func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{db: db}
}

// Create inserts a waiting room and returns its row id.
func (s *RoomStore) Create(ctx context.Context, code, creatorID string, maxPlayers int) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO rooms (code, creator_id, max_players)
		VALUES ($1, $2, $3)
		RETURNING id
	`, code, creatorID, maxPlayers).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create room %s: %w", code, err)
	}
	return id, nil
}

// Resolve returns game.ErrRoomNotFound for unknown or finished rooms.
func (s *RoomStore) Resolve(ctx context.Context, code string) (game.RoomInfo, error) {
	var (
		info   game.RoomInfo
		status string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, creator_id, max_players, status
		FROM rooms WHERE code = $1
	`, code).Scan(&info.DurableID, &info.CreatorID, &info.MaxPlayers, &status)

	if errors.Is(err, pgx.ErrNoRows) {
		return game.RoomInfo{}, game.ErrRoomNotFound
	}
	if err != nil {
		return game.RoomInfo{}, fmt.Errorf("resolve room %s: %w", code, err)
	}
	if game.RoomStatus(status) == game.RoomFinished {
		return game.RoomInfo{}, game.ErrRoomNotFound
	}
	return info, nil
}

func (s *RoomStore) SetStatus(ctx context.Context, code string, status game.RoomStatus) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rooms SET status = $2, updated_at = now()
		WHERE code = $1
	`, code, string(status))
	return err
}
