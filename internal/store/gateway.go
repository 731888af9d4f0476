package store

import (
	"context"

	"example.com/codenames/internal/game"
)

var _ game.Gateway = (*Gateway)(nil)

// Gateway is the game.Gateway backed by Postgres (rooms, matches) and
// Redis (active-room markers).
type Gateway struct {
	Rooms   *RoomStore
	Matches *MatchStore
	Markers *MarkerStore
}

func (g *Gateway) ResolveRoom(ctx context.Context, roomID string) (game.RoomInfo, error) {
	return g.Rooms.Resolve(ctx, roomID)
}

func (g *Gateway) SetRoomStatus(ctx context.Context, roomID string, status game.RoomStatus) error {
	return g.Rooms.SetStatus(ctx, roomID, status)
}

func (g *Gateway) RecordMatch(ctx context.Context, durableID int64, winner game.Team, players []game.MatchPlayer) error {
	return g.Matches.Record(ctx, durableID, winner, players)
}

func (g *Gateway) SetActiveRoom(ctx context.Context, userID, roomID string) error {
	return g.Markers.Set(ctx, userID, roomID)
}

func (g *Gateway) ClearActiveRoom(ctx context.Context, userID string) error {
	return g.Markers.Clear(ctx, userID)
}
