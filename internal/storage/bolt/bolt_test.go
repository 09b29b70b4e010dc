package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/lounge/internal/storage"
)

func testSession(id string, created time.Time) storage.Session {
	end := created.Add(70 * time.Minute)
	return storage.Session{
		ID:                  id,
		DeviceName:          "PS5-1",
		PlayerCount:         storage.PlayersOneTwo,
		StartTime:           created,
		EndTime:             &end,
		TotalPausedDuration: 10 * time.Minute,
		Orders: []storage.Order{
			{ID: "order-1", SessionID: id, ItemName: "Tea", Quantity: 2, UnitPrice: 1000, TotalPrice: 2000, CreatedAt: created},
		},
		PaymentStatus: storage.PaymentUnpaid,
		CreatedAt:     created,
	}
}

func TestLedgerStoreSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	created := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	session := testSession("session-a", created)

	if err := store.Ledger().SaveSession(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	sessions, err := store.Ledger().LoadSessions(ctx)
	if err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	got := sessions[0]
	if !got.StartTime.Equal(created) {
		t.Fatalf("expected start %s, got %s", created, got.StartTime)
	}
	if got.EndTime == nil || !got.EndTime.Equal(*session.EndTime) {
		t.Fatalf("expected end %s, got %v", session.EndTime, got.EndTime)
	}
	if got.TotalPausedDuration != 10*time.Minute {
		t.Fatalf("expected paused 10m, got %s", got.TotalPausedDuration)
	}
	if len(got.Orders) != 1 || got.Orders[0].TotalPrice != 2000 {
		t.Fatalf("unexpected orders: %+v", got.Orders)
	}

	if err := store.Ledger().DeleteSession(ctx, "session-a"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if err := store.Ledger().DeleteSession(ctx, "session-a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLedgerStoreSettingsFirstRun(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if _, err := store.Ledger().LoadSettings(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	settings := storage.DefaultSettings()
	settings.Rates.RateOneTwoPlayers = 8000
	if err := store.Ledger().SaveSettings(ctx, settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	loaded, err := store.Ledger().LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if loaded.Rates.RateOneTwoPlayers != 8000 {
		t.Fatalf("expected rate 8000, got %v", loaded.Rates.RateOneTwoPlayers)
	}
	if len(loaded.Devices) != 5 {
		t.Fatalf("expected 5 devices, got %d", len(loaded.Devices))
	}
}

func TestLedgerStoreImportReplacesState(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	created := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	if err := store.Ledger().SaveSession(ctx, testSession("old", created)); err != nil {
		t.Fatalf("save session: %v", err)
	}

	settings := storage.DefaultSettings()
	settings.Devices = []string{"PC-1"}
	snapshot := storage.Snapshot{
		Sessions: []storage.Session{testSession("new-1", created), testSession("new-2", created.Add(time.Hour))},
		Settings: settings,
	}
	if err := store.Ledger().ImportAll(ctx, snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}

	exported, err := store.Ledger().ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exported.Sessions) != 2 {
		t.Fatalf("expected 2 sessions after import, got %d", len(exported.Sessions))
	}
	for _, s := range exported.Sessions {
		if s.ID == "old" {
			t.Fatalf("expected old session to be replaced")
		}
	}
	if len(exported.Settings.Devices) != 1 || exported.Settings.Devices[0] != "PC-1" {
		t.Fatalf("unexpected devices: %v", exported.Settings.Devices)
	}
}

func TestLedgerStoreClearAll(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	created := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	if err := store.Ledger().SaveSession(ctx, testSession("a", created)); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.Ledger().SaveSettings(ctx, storage.DefaultSettings()); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if err := store.Ledger().ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	sessions, err := store.Ledger().LoadSessions(ctx)
	if err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
	if _, err := store.Ledger().LoadSettings(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected settings cleared, got %v", err)
	}
}

func TestAccessStorePIN(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if _, err := store.Access().GetPIN(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	pin := storage.AccessPIN{Hash: "hash", UpdatedAt: time.Now().UTC()}
	if err := store.Access().SetPIN(ctx, pin); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	got, err := store.Access().GetPIN(ctx)
	if err != nil {
		t.Fatalf("get pin: %v", err)
	}
	if got.Hash != "hash" {
		t.Fatalf("expected hash, got %q", got.Hash)
	}

	if err := store.Access().ClearPIN(ctx); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	if err := store.Access().ClearPIN(ctx); err != nil {
		t.Fatalf("clear absent pin: %v", err)
	}
}

func TestAccessStoreAttempts(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	got, err := store.Access().GetAttempts(ctx)
	if err != nil {
		t.Fatalf("get attempts: %v", err)
	}
	if got != (storage.AccessAttempts{}) {
		t.Fatalf("expected zero attempts, got %+v", got)
	}

	until := time.Date(2024, 3, 5, 12, 1, 0, 0, time.UTC)
	if err := store.Access().SetAttempts(ctx, storage.AccessAttempts{Failures: 2, LockedUntil: until}); err != nil {
		t.Fatalf("set attempts: %v", err)
	}
	got, err = store.Access().GetAttempts(ctx)
	if err != nil {
		t.Fatalf("get attempts: %v", err)
	}
	if got.Failures != 2 || !got.LockedUntil.Equal(until) {
		t.Fatalf("unexpected attempts %+v", got)
	}

	// The PIN and the attempts are independent records
	if err := store.Access().SetPIN(ctx, storage.AccessPIN{Hash: "hash"}); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if got, _ := store.Access().GetAttempts(ctx); got.Failures != 2 {
		t.Fatalf("setting the PIN changed attempts: %+v", got)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lounge.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
