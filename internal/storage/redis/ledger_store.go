package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodtune/lounge/internal/storage"
	"github.com/redis/go-redis/v9"
)

type ledgerStore struct {
	client *redis.Client
	upsert *redis.Script
}

// LoadSessions returns every session ordered by creation time.
func (s *ledgerStore) LoadSessions(ctx context.Context) ([]storage.Session, error) {
	ids, err := s.client.ZRange(ctx, keySessionIndex, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.Session{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, sessionKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.Session, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		session, err := parseSession(data)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", ids[i], err)
		}
		sessions = append(sessions, *session)
	}

	return sessions, nil
}

// LoadSettings returns the saved settings or storage.ErrNotFound.
func (s *ledgerStore) LoadSettings(ctx context.Context) (*storage.Settings, error) {
	data, err := s.client.Get(ctx, keySettings).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var settings storage.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &settings, nil
}

// SaveSession creates or replaces a session and maintains its index entry.
func (s *ledgerStore) SaveSession(ctx context.Context, session storage.Session) error {
	keys, args, err := upsertArgs(session)
	if err != nil {
		return err
	}
	return s.upsert.Run(ctx, s.client, keys, args...).Err()
}

func upsertArgs(session storage.Session) ([]string, []interface{}, error) {
	if session.ID == "" {
		return nil, nil, fmt.Errorf("session id is required")
	}

	fields, err := sessionFields(session)
	if err != nil {
		return nil, nil, err
	}

	keys := []string{sessionKey(session.ID), keySessionIndex}
	args := append([]interface{}{
		session.ID,
		session.CreatedAt.UnixMilli(),
	}, fields...)

	return keys, args, nil
}

// DeleteSession removes a session by ID
func (s *ledgerStore) DeleteSession(ctx context.Context, id string) error {
	script := redis.NewScript(deleteSessionScript)

	keys := []string{sessionKey(id), keySessionIndex}
	removed, err := script.Run(ctx, s.client, keys, id).Int()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveSettings replaces the stored settings.
func (s *ledgerStore) SaveSettings(ctx context.Context, settings storage.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return s.client.Set(ctx, keySettings, data, 0).Err()
}

// ExportAll returns every session plus the current settings.
func (s *ledgerStore) ExportAll(ctx context.Context) (*storage.Snapshot, error) {
	sessions, err := s.LoadSessions(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.LoadSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		defaults := storage.DefaultSettings()
		settings = &defaults
	} else if err != nil {
		return nil, err
	}

	return &storage.Snapshot{Sessions: sessions, Settings: *settings}, nil
}

// ImportAll replaces every session and the settings.
func (s *ledgerStore) ImportAll(ctx context.Context, snapshot storage.Snapshot) error {
	type upsert struct {
		keys []string
		args []interface{}
	}

	upserts := make([]upsert, 0, len(snapshot.Sessions))
	for _, session := range snapshot.Sessions {
		keys, args, err := upsertArgs(session)
		if err != nil {
			return err
		}
		upserts = append(upserts, upsert{keys: keys, args: args})
	}

	settingsData, err := json.Marshal(snapshot.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := s.ClearAll(ctx); err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range upserts {
			// EVALSHA cannot fall back to EVAL inside MULTI
			s.upsert.Eval(ctx, pipe, u.keys, u.args...)
		}
		pipe.Set(ctx, keySettings, settingsData, 0)
		return nil
	})
	return err
}

// ClearAll removes every session key, the index and the settings.
func (s *ledgerStore) ClearAll(ctx context.Context) error {
	keys := []string{keySessionIndex, keySettings}

	iter := s.client.Scan(ctx, 0, keySessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	return s.client.Del(ctx, keys...).Err()
}
