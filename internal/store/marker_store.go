package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore keeps the "currently in room X" marker per user in Redis.
// Rooms don't survive a restart, so the marker expires on its own.
type MarkerStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMarkerStore(rdb *redis.Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{rdb: rdb, ttl: ttl}
}

func markerKey(userID string) string {
	return fmt.Sprintf("user:%s:active_room", userID)
}

func (s *MarkerStore) Set(ctx context.Context, userID, roomID string) error {
	return s.rdb.Set(ctx, markerKey(userID), roomID, s.ttl).Err()
}

func (s *MarkerStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, markerKey(userID)).Err()
}

// Get returns the room the user is in, if any.
func (s *MarkerStore) Get(ctx context.Context, userID string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, markerKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
