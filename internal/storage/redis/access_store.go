package redis

import (
	"context"
	"time"

	"github.com/goodtune/lounge/internal/storage"
	"github.com/redis/go-redis/v9"
)

type accessStore struct {
	client *redis.Client
}

// GetPIN returns the stored PIN hash or storage.ErrNotFound.
func (s *accessStore) GetPIN(ctx context.Context) (*storage.AccessPIN, error) {
	data, err := s.client.HGetAll(ctx, keyAccessPIN).Result()
	if err != nil {
		return nil, err
	}
	return parseAccessPIN(data)
}

// SetPIN replaces the stored PIN hash.
func (s *accessStore) SetPIN(ctx context.Context, pin storage.AccessPIN) error {
	return s.client.HSet(ctx, keyAccessPIN,
		"hash", pin.Hash,
		"updated_at", pin.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
}

// ClearPIN removes the PIN.
func (s *accessStore) ClearPIN(ctx context.Context) error {
	return s.client.Del(ctx, keyAccessPIN).Err()
}

// GetAttempts returns the recorded failed unlocks, or the zero value.
func (s *accessStore) GetAttempts(ctx context.Context) (storage.AccessAttempts, error) {
	data, err := s.client.HGetAll(ctx, keyAccessTries).Result()
	if err != nil {
		return storage.AccessAttempts{}, err
	}
	return parseAccessAttempts(data)
}

// SetAttempts replaces the recorded failed unlocks.
func (s *accessStore) SetAttempts(ctx context.Context, attempts storage.AccessAttempts) error {
	lockedUntil := ""
	if !attempts.LockedUntil.IsZero() {
		lockedUntil = attempts.LockedUntil.Format(time.RFC3339Nano)
	}
	return s.client.HSet(ctx, keyAccessTries,
		"failures", attempts.Failures,
		"locked_until", lockedUntil,
	).Err()
}
