package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "sessions:"
	sessionTTL       = 24 * time.Hour
)

// SessionStore is the Redis-backed real-time session registry. Each room
// maps to the set of live socket ids joined to it; liveness is set
// non-emptiness. The TTL guards against orphaned sets when a process dies
// without deregistering.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Register records a live socket for the room.
func (s *SessionStore) Register(ctx context.Context, room, sessionID string) error {
	key := sessionKeyPrefix + room
	if err := s.client.SAdd(ctx, key, sessionID).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, sessionTTL).Err()
}

// Deregister removes a socket from the room.
func (s *SessionStore) Deregister(ctx context.Context, room, sessionID string) error {
	return s.client.SRem(ctx, sessionKeyPrefix+room, sessionID).Err()
}

// IsConnected reports whether the room has at least one live socket.
func (s *SessionStore) IsConnected(ctx context.Context, room string) (bool, error) {
	n, err := s.client.SCard(ctx, sessionKeyPrefix+room).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
