package bolt

import (
	"context"
	"errors"

	"github.com/goodtune/lounge/internal/storage"
	"go.etcd.io/bbolt"
)

type accessStore struct {
	db *bbolt.DB
}

// GetPIN returns the stored PIN hash or storage.ErrNotFound.
func (s *accessStore) GetPIN(ctx context.Context) (*storage.AccessPIN, error) {
	return getBucketValue[storage.AccessPIN](ctx, s.db, bucketAccess, keyPIN)
}

// SetPIN replaces the stored PIN hash.
func (s *accessStore) SetPIN(ctx context.Context, pin storage.AccessPIN) error {
	return putBucketValue(ctx, s.db, bucketAccess, keyPIN, pin)
}

// ClearPIN removes the PIN. Clearing an absent PIN is not an error.
func (s *accessStore) ClearPIN(ctx context.Context) error {
	err := deleteBucketValue(ctx, s.db, bucketAccess, keyPIN)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// GetAttempts returns the recorded failed unlocks, or the zero value.
func (s *accessStore) GetAttempts(ctx context.Context) (storage.AccessAttempts, error) {
	attempts, err := getBucketValue[storage.AccessAttempts](ctx, s.db, bucketAccess, keyAttempts)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccessAttempts{}, nil
	}
	if err != nil {
		return storage.AccessAttempts{}, err
	}
	return *attempts, nil
}

// SetAttempts replaces the recorded failed unlocks.
func (s *accessStore) SetAttempts(ctx context.Context, attempts storage.AccessAttempts) error {
	return putBucketValue(ctx, s.db, bucketAccess, keyAttempts, attempts)
}
