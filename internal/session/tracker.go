// Package session holds the authoritative in-memory ledger of lounge sessions
// and drives their lifecycle.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tracker is the session store. All mutations go through its lifecycle and
// settings operations and are written through to the ledger store.
type Tracker struct {
	ledger   storage.LedgerStore
	clock    Clock
	newID    func() string
	defaults storage.Settings
	sessions map[string]*storage.Session
	settings storage.Settings
	logger   zerolog.Logger
	mu       sync.RWMutex

	observers    map[int]Observer
	nextObserver int
	obsMu        sync.Mutex
}

// Config holds tracker configuration
type Config struct {
	Clock Clock
	// Defaults are written on first run and after a clear.
	Defaults *storage.Settings
	// NewID generates session, order and product ids.
	NewID func() string
}

// NewTracker creates a new session tracker. Call Load before use.
func NewTracker(ledger storage.LedgerStore, config Config, logger zerolog.Logger) *Tracker {
	if config.Clock == nil {
		config.Clock = RealClock{}
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	defaults := storage.DefaultSettings()
	if config.Defaults != nil {
		defaults = config.Defaults.Clone()
	}

	return &Tracker{
		ledger:    ledger,
		clock:     config.Clock,
		newID:     config.NewID,
		defaults:  defaults,
		sessions:  make(map[string]*storage.Session),
		settings:  defaults.Clone(),
		logger:    logger.With().Str("component", "session-tracker").Logger(),
		observers: make(map[int]Observer),
	}
}

// Now samples the tracker's clock.
func (t *Tracker) Now() time.Time {
	return t.clock.Now()
}

// Load replaces in-memory state with the contents of the ledger store.
// Settings are initialised to the defaults on first run.
func (t *Tracker) Load(ctx context.Context) error {
	sessions, err := t.ledger.LoadSessions(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Storage, "session.load", err)
	}

	settings, err := t.ledger.LoadSettings(ctx)
	firstRun := errors.Is(err, storage.ErrNotFound)
	if err != nil && !firstRun {
		return apperr.Wrap(apperr.Storage, "session.load", err)
	}
	if firstRun {
		defaults := t.defaults.Clone()
		settings = &defaults
	}

	t.mu.Lock()
	t.sessions = make(map[string]*storage.Session, len(sessions))
	for i := range sessions {
		s := sessions[i]
		t.repair(&s)
		t.sessions[s.ID] = &s
	}
	t.settings = t.normalizeSettings(*settings)
	current := t.settings.Clone()
	t.mu.Unlock()

	t.logger.Info().
		Int("sessions", len(sessions)).
		Bool("first_run", firstRun).
		Msg("Loaded session ledger")

	if firstRun {
		if err := t.ledger.SaveSettings(ctx, current); err != nil {
			return apperr.Wrap(apperr.Storage, "session.load", err)
		}
	}

	t.notify(Event{Type: EventReplaced, At: t.clock.Now(), Rates: current.Rates})
	return nil
}

// Reload is Load under another name for signal handlers.
func (t *Tracker) Reload(ctx context.Context) error {
	return t.Load(ctx)
}

// repair restores the pause invariant on data written by older versions.
func (t *Tracker) repair(s *storage.Session) {
	if s.IsPaused && s.PauseStartTime == nil {
		t.logger.Warn().Str("session_id", s.ID).Msg("Paused session without pause start, clearing pause")
		s.IsPaused = false
	}
	if !s.IsPaused && s.PauseStartTime != nil {
		s.PauseStartTime = nil
	}
	if s.Orders == nil {
		s.Orders = []storage.Order{}
	}
	if s.PaymentStatus == "" {
		s.PaymentStatus = storage.PaymentUnpaid
	}
}

func (t *Tracker) normalizeSettings(s storage.Settings) storage.Settings {
	if s.Devices == nil {
		s.Devices = append([]string(nil), t.defaults.Devices...)
	}
	if s.Products == nil {
		s.Products = append([]storage.Product(nil), t.defaults.Products...)
	}
	return s.Clone()
}

// Get returns a copy of a session.
func (t *Tracker) Get(id string) (storage.Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[id]
	if !ok {
		return storage.Session{}, apperr.New(apperr.NotFound, "session.get", "session %s not found", id)
	}
	return s.Clone(), nil
}

// List returns every session, most recent first.
func (t *Tracker) List() []storage.Session {
	return t.collect(func(*storage.Session) bool { return true })
}

// ListActive returns sessions without an end time, most recent first.
func (t *Tracker) ListActive() []storage.Session {
	return t.collect(func(s *storage.Session) bool { return !s.Ended() })
}

// ListByCreatedRange returns sessions created within [from, to], most recent
// first. A zero bound is open.
func (t *Tracker) ListByCreatedRange(from, to time.Time) []storage.Session {
	return t.collect(func(s *storage.Session) bool {
		if !from.IsZero() && s.CreatedAt.Before(from) {
			return false
		}
		if !to.IsZero() && s.CreatedAt.After(to) {
			return false
		}
		return true
	})
}

func (t *Tracker) collect(keep func(*storage.Session) bool) []storage.Session {
	t.mu.RLock()
	out := make([]storage.Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	t.mu.RUnlock()

	storage.SortByCreatedDesc(out)
	return out
}

// Settings returns a copy of the current settings.
func (t *Tracker) Settings() storage.Settings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings.Clone()
}

// Rates returns the current hourly rates.
func (t *Tracker) Rates() storage.RateSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.settings.Rates
}

// saveSession writes a session through to storage. The caller holds t.mu.
func (t *Tracker) saveSession(ctx context.Context, op string, s *storage.Session) error {
	if err := t.ledger.SaveSession(ctx, s.Clone()); err != nil {
		t.logger.Error().Err(err).Str("session_id", s.ID).Str("op", op).Msg("Failed to persist session")
		return apperr.Wrap(apperr.Storage, op, err)
	}
	return nil
}

// saveSettings writes settings through to storage. The caller holds t.mu.
func (t *Tracker) saveSettings(ctx context.Context, op string) error {
	if err := t.ledger.SaveSettings(ctx, t.settings.Clone()); err != nil {
		t.logger.Error().Err(err).Str("op", op).Msg("Failed to persist settings")
		return apperr.Wrap(apperr.Storage, op, err)
	}
	return nil
}
