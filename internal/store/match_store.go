package store

import (
	"context"
	"fmt"

	"example.com/codenames/internal/game"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlayerStats struct {
	UserID string
	Games  int
	Wins   int
	Losses int
}

type MatchStore struct {
	db *pgxpool.Pool
}

func NewMatchStore(db *pgxpool.Pool) *MatchStore {
	return &MatchStore{db: db}
}

// Record appends a finished match with one row per seated player and marks
// the room finished, in one transaction.
func (s *MatchStore) Record(ctx context.Context, roomID int64, winner game.Team, players []game.MatchPlayer) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("record match: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var matchID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO matches (room_id, winner)
		VALUES ($1, $2)
		RETURNING id
	`, roomID, string(winner)).Scan(&matchID)
	if err != nil {
		return fmt.Errorf("record match: insert match: %w", err)
	}

	rows := make([][]any, 0, len(players))
	for _, p := range players {
		rows = append(rows, []any{matchID, p.UserID, string(p.Team), string(p.Role), p.Won})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"match_players"},
		[]string{"match_id", "user_id", "team", "role", "won"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("record match: insert players: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rooms SET status = 'finished', updated_at = now()
		WHERE id = $1
	`, roomID)
	if err != nil {
		return fmt.Errorf("record match: finish room: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *MatchStore) Stats(ctx context.Context, userID string) (PlayerStats, error) {
	st := PlayerStats{UserID: userID}
	// нет матчей — нули, не ошибка
	err := s.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE won),
		       count(*) FILTER (WHERE NOT won)
		FROM match_players
		WHERE user_id = $1
	`, userID).Scan(&st.Games, &st.Wins, &st.Losses)
	if err != nil {
		return PlayerStats{}, err
	}
	return st, nil
}
