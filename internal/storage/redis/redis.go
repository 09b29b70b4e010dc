package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/lounge/internal/config"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keySessionPrefix = "lounge:session:"
	keySessionIndex  = "lounge:sessions"
	keySettings      = "lounge:settings"
	keyAccessPIN     = "lounge:access:pin"
	keyAccessTries   = "lounge:access:attempts"
)

func sessionKey(id string) string {
	return keySessionPrefix + id
}

// Store implements the storage.Store interface using Redis
type Store struct {
	client      *redis.Client
	ledgerStore *ledgerStore
	accessStore *accessStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:      client,
		ledgerStore: &ledgerStore{client: client, upsert: redis.NewScript(upsertSessionScript)},
		accessStore: &accessStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ledger returns the LedgerStore implementation
func (s *Store) Ledger() storage.LedgerStore {
	return s.ledgerStore
}

// Access returns the AccessStore implementation
func (s *Store) Access() storage.AccessStore {
	return s.accessStore
}
