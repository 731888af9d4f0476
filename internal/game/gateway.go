package game

import (
	"context"
	"errors"
)

var ErrRoomNotFound = errors.New("room not found")

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomInGame   RoomStatus = "in_game"
	RoomFinished RoomStatus = "finished"
)

// RoomInfo is what the durable store knows about a room.
type RoomInfo struct {
	DurableID  int64 // 0 if the row id is unknown
	CreatorID  string
	MaxPlayers int // 0 => Config.MaxPlayers
}

type MatchPlayer struct {
	UserID string `json:"userId"`
	Team   Team   `json:"team"`
	Role   Role   `json:"role"`
	Won    bool   `json:"won"`
}

// Gateway is the narrow persistence contract the game core depends on.
// Apart from ResolveRoom every call is best effort.
type Gateway interface {
	ResolveRoom(ctx context.Context, roomID string) (RoomInfo, error)
	SetRoomStatus(ctx context.Context, roomID string, status RoomStatus) error
	RecordMatch(ctx context.Context, durableID int64, winner Team, players []MatchPlayer) error
	SetActiveRoom(ctx context.Context, userID, roomID string) error
	ClearActiveRoom(ctx context.Context, userID string) error
}

// Peer is the only thing the core needs from a transport connection.
type Peer interface {
	// Send queues bytes for delivery; it must not block.
	Send(b []byte)
	Close(code int, reason string)
}
