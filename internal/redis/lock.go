package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis. Booking locks serialize
// matching-window fan-out per booking; the database's conditional update
// remains the authority for the accept race itself.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireBookingLock attempts to acquire the matching lock for a booking.
// Returns true if acquired, false if another process holds it.
func (s *LockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:booking:%s", bookingID)
	return s.client.SetNX(ctx, key, "1", ttl).Result()
}

// ReleaseBookingLock releases the matching lock for a booking.
func (s *LockStore) ReleaseBookingLock(ctx context.Context, bookingID string) error {
	key := fmt.Sprintf("lock:booking:%s", bookingID)
	return s.client.Del(ctx, key).Err()
}
