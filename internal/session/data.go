package session

import (
	"context"
	"strings"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/storage"
)

// Export returns a snapshot of the in-memory state.
func (t *Tracker) Export() storage.Snapshot {
	sessions := t.List()
	return storage.Snapshot{
		Sessions: sessions,
		Settings: t.Settings(),
	}
}

// Import replaces all sessions and settings with a validated snapshot.
func (t *Tracker) Import(ctx context.Context, snapshot storage.Snapshot) error {
	const op = "session.import"

	seen := make(map[string]struct{}, len(snapshot.Sessions))
	sessions := make(map[string]*storage.Session, len(snapshot.Sessions))
	for i := range snapshot.Sessions {
		s := snapshot.Sessions[i].Clone()
		if s.ID == "" {
			return apperr.New(apperr.Validation, op, "session at index %d has no id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return apperr.New(apperr.Validation, op, "duplicate session id %s", s.ID)
		}
		seen[s.ID] = struct{}{}
		if strings.TrimSpace(s.DeviceName) == "" {
			return apperr.New(apperr.Validation, op, "session %s has no device name", s.ID)
		}
		if !s.PlayerCount.Valid() {
			return apperr.New(apperr.Validation, op, "session %s has invalid player count %q", s.ID, s.PlayerCount)
		}
		t.repair(&s)
		sessions[s.ID] = &s
	}

	t.mu.Lock()
	t.sessions = sessions
	t.settings = t.normalizeSettings(snapshot.Settings)
	normalized := storage.Snapshot{Sessions: make([]storage.Session, 0, len(sessions)), Settings: t.settings.Clone()}
	for _, s := range sessions {
		normalized.Sessions = append(normalized.Sessions, s.Clone())
	}

	var err error
	if serr := t.ledger.ImportAll(ctx, normalized); serr != nil {
		t.logger.Error().Err(serr).Msg("Failed to persist imported data")
		err = apperr.Wrap(apperr.Storage, op, serr)
	}
	t.mu.Unlock()

	t.logger.Info().Int("sessions", len(sessions)).Msg("Imported ledger snapshot")
	t.notify(Event{Type: EventReplaced, At: t.clock.Now(), Rates: normalized.Settings.Rates})
	return err
}

// Clear removes every session and restores the default settings.
func (t *Tracker) Clear(ctx context.Context) error {
	const op = "session.clear"

	t.mu.Lock()
	t.sessions = make(map[string]*storage.Session)
	t.settings = t.defaults.Clone()

	var err error
	if serr := t.ledger.ClearAll(ctx); serr != nil {
		err = apperr.Wrap(apperr.Storage, op, serr)
	} else {
		err = t.saveSettings(ctx, op)
	}
	rates := t.settings.Rates
	t.mu.Unlock()

	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to clear storage")
	}
	t.logger.Warn().Msg("Cleared all sessions and reset settings")
	t.notify(Event{Type: EventReplaced, At: t.clock.Now(), Rates: rates})
	return err
}
