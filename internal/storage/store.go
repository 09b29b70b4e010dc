package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Ledger() LedgerStore
	Access() AccessStore
}

// LedgerStore persists sessions and the settings they are billed against.
type LedgerStore interface {
	LoadSessions(ctx context.Context) ([]Session, error)
	// LoadSettings returns ErrNotFound until settings have been saved once.
	LoadSettings(ctx context.Context) (*Settings, error)
	SaveSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, id string) error
	SaveSettings(ctx context.Context, settings Settings) error
	ExportAll(ctx context.Context) (*Snapshot, error)
	// ImportAll replaces every stored session and the settings with the snapshot.
	ImportAll(ctx context.Context, snapshot Snapshot) error
	// ClearAll removes all sessions and settings.
	ClearAll(ctx context.Context) error
}

// AccessStore persists the PIN used by the access gate and its failed
// unlock attempts.
type AccessStore interface {
	GetPIN(ctx context.Context) (*AccessPIN, error)
	SetPIN(ctx context.Context, pin AccessPIN) error
	ClearPIN(ctx context.Context) error
	// GetAttempts returns the zero value when nothing was recorded.
	GetAttempts(ctx context.Context) (AccessAttempts, error)
	SetAttempts(ctx context.Context, attempts AccessAttempts) error
}
