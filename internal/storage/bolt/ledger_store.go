package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/lounge/internal/storage"
	"go.etcd.io/bbolt"
)

type ledgerStore struct {
	db *bbolt.DB
}

// LoadSessions returns every stored session.
func (s *ledgerStore) LoadSessions(ctx context.Context) ([]storage.Session, error) {
	return listBucket[storage.Session](ctx, s.db, bucketSessions)
}

// LoadSettings returns the saved settings or storage.ErrNotFound.
func (s *ledgerStore) LoadSettings(ctx context.Context) (*storage.Settings, error) {
	return getBucketValue[storage.Settings](ctx, s.db, bucketSettings, keySettings)
}

// SaveSession creates or replaces a session.
func (s *ledgerStore) SaveSession(ctx context.Context, session storage.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	return putBucketValue(ctx, s.db, bucketSessions, session.ID, session)
}

// DeleteSession removes a session by ID.
func (s *ledgerStore) DeleteSession(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketSessions, id)
}

// SaveSettings replaces the stored settings.
func (s *ledgerStore) SaveSettings(ctx context.Context, settings storage.Settings) error {
	return putBucketValue(ctx, s.db, bucketSettings, keySettings, settings)
}

// ExportAll reads sessions and settings in a single transaction.
func (s *ledgerStore) ExportAll(ctx context.Context) (*storage.Snapshot, error) {
	snapshot := &storage.Snapshot{
		Sessions: make([]storage.Session, 0),
		Settings: storage.DefaultSettings(),
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(bucketSettings)); b != nil {
			if data := b.Get([]byte(keySettings)); data != nil {
				if err := unmarshal(data, &snapshot.Settings); err != nil {
					return err
				}
			}
		}

		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var session storage.Session
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			snapshot.Sessions = append(snapshot.Sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// ImportAll replaces all sessions and settings atomically.
func (s *ledgerStore) ImportAll(ctx context.Context, snapshot storage.Snapshot) error {
	settingsData, err := marshal(snapshot.Settings)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := resetBuckets(tx, bucketSessions, bucketSettings); err != nil {
			return err
		}

		sessions := tx.Bucket([]byte(bucketSessions))
		for _, session := range snapshot.Sessions {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if session.ID == "" {
				return fmt.Errorf("session id is required")
			}
			data, err := marshal(session)
			if err != nil {
				return err
			}
			if err := sessions.Put([]byte(session.ID), data); err != nil {
				return err
			}
		}

		return tx.Bucket([]byte(bucketSettings)).Put([]byte(keySettings), settingsData)
	})
}

// ClearAll drops all sessions and settings.
func (s *ledgerStore) ClearAll(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return resetBuckets(tx, bucketSessions, bucketSettings)
	})
}
