package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/goodtune/lounge/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger is an in-memory storage.LedgerStore with failure injection.
type memLedger struct {
	mu       sync.Mutex
	sessions map[string]storage.Session
	settings *storage.Settings
	failSave bool
}

func newMemLedger() *memLedger {
	return &memLedger{sessions: make(map[string]storage.Session)}
}

func (m *memLedger) LoadSessions(context.Context) ([]storage.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (m *memLedger) LoadSettings(context.Context) (*storage.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, storage.ErrNotFound
	}
	s := m.settings.Clone()
	return &s, nil
}

func (m *memLedger) SaveSession(_ context.Context, s storage.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memLedger) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memLedger) SaveSettings(_ context.Context, s storage.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	c := s.Clone()
	m.settings = &c
	return nil
}

func (m *memLedger) ExportAll(ctx context.Context) (*storage.Snapshot, error) {
	sessions, _ := m.LoadSessions(ctx)
	settings, err := m.LoadSettings(ctx)
	if err != nil {
		d := storage.DefaultSettings()
		settings = &d
	}
	return &storage.Snapshot{Sessions: sessions, Settings: *settings}, nil
}

func (m *memLedger) ImportAll(_ context.Context, snap storage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]storage.Session)
	for _, s := range snap.Sessions {
		m.sessions[s.ID] = s.Clone()
	}
	c := snap.Settings.Clone()
	m.settings = &c
	return nil
}

func (m *memLedger) ClearAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]storage.Session)
	m.settings = nil
	return nil
}

var epoch = time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T) (*Tracker, *TestClock, *memLedger) {
	t.Helper()

	clock := &TestClock{CurrentTime: epoch}
	ledger := newMemLedger()
	n := 0
	tracker := NewTracker(ledger, Config{
		Clock: clock,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
	}, zerolog.Nop())
	require.NoError(t, tracker.Load(context.Background()))
	return tracker, clock, ledger
}

func assertPauseInvariant(t *testing.T, s storage.Session) {
	t.Helper()
	assert.Equal(t, s.IsPaused, s.PauseStartTime != nil, "isPaused must match pauseStartTime presence")
}

func TestSeventyMinuteScenario(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	_, err = tracker.AddOrder(ctx, s.ID, OrderRequest{ItemName: "Tea", Quantity: 2, UnitPrice: 1000})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	s, err = tracker.Pause(ctx, s.ID)
	require.NoError(t, err)
	assertPauseInvariant(t, s)

	clock.Advance(10 * time.Minute)
	s, err = tracker.Resume(ctx, s.ID)
	require.NoError(t, err)
	assertPauseInvariant(t, s)

	clock.Advance(60 * time.Minute)
	s, err = tracker.End(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, 600_000*time.Millisecond, s.TotalPausedDuration)
	assert.Equal(t, 4_200_000*time.Millisecond, billing.FinalDuration(&s))

	rates := tracker.Rates()
	cost, err := billing.SessionCost(&s, rates, billing.FinalDuration(&s))
	require.NoError(t, err)
	assert.InDelta(t, 8166.67, cost, 0.01)
	assert.Equal(t, 2000.0, billing.OrdersTotal(&s))

	clock.Advance(5 * time.Hour)
	total, err := billing.SessionTotal(&s, rates, clock.Now())
	require.NoError(t, err)
	assert.InDelta(t, 10166.67, total, 0.01)
}

func TestEndWhilePausedMatchesResumeThenEnd(t *testing.T) {
	ctx := context.Background()

	// pause at 10m, end at 30m while still paused
	a, clockA, _ := newTestTracker(t)
	sa, err := a.Start(ctx, StartRequest{DeviceName: "PS4-1", PlayerCount: storage.PlayersThreeFour})
	require.NoError(t, err)
	clockA.Advance(10 * time.Minute)
	_, err = a.Pause(ctx, sa.ID)
	require.NoError(t, err)
	clockA.Advance(20 * time.Minute)
	sa, err = a.End(ctx, sa.ID)
	require.NoError(t, err)

	// pause at 10m, resume at 30m, end immediately
	b, clockB, _ := newTestTracker(t)
	sb, err := b.Start(ctx, StartRequest{DeviceName: "PS4-1", PlayerCount: storage.PlayersThreeFour})
	require.NoError(t, err)
	clockB.Advance(10 * time.Minute)
	_, err = b.Pause(ctx, sb.ID)
	require.NoError(t, err)
	clockB.Advance(20 * time.Minute)
	_, err = b.Resume(ctx, sb.ID)
	require.NoError(t, err)
	sb, err = b.End(ctx, sb.ID)
	require.NoError(t, err)

	assert.Equal(t, billing.FinalDuration(&sb), billing.FinalDuration(&sa))
	assert.Equal(t, 10*time.Minute, billing.FinalDuration(&sa))
	assert.False(t, sa.IsPaused)
	assertPauseInvariant(t, sa)
}

func TestPauseResumeZeroElapsed(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-2", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)
	_, err = tracker.Pause(ctx, s.ID)
	require.NoError(t, err)
	s, err = tracker.Resume(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), s.TotalPausedDuration)
}

func TestTogglePause(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-2", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	s, err = tracker.TogglePause(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, s.IsPaused)

	clock.Advance(time.Minute)
	s, err = tracker.TogglePause(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, s.IsPaused)
	assert.Equal(t, time.Minute, s.TotalPausedDuration)
}

func TestInvalidTransitions(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	_, err = tracker.Resume(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.State), "resume when not paused")

	_, err = tracker.Pause(ctx, s.ID)
	require.NoError(t, err)
	_, err = tracker.Pause(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.State), "pause twice")

	_, err = tracker.End(ctx, s.ID)
	require.NoError(t, err)
	_, err = tracker.End(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.State), "end twice")
	_, err = tracker.Pause(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.State), "pause ended")
	_, err = tracker.Resume(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.State), "resume ended")

	for name, op := range map[string]func() error{
		"pause":  func() error { _, err := tracker.Pause(ctx, "missing"); return err },
		"resume": func() error { _, err := tracker.Resume(ctx, "missing"); return err },
		"end":    func() error { _, err := tracker.End(ctx, "missing"); return err },
		"pay": func() error {
			_, err := tracker.UpdatePaymentStatus(ctx, "missing", storage.PaymentPaid)
			return err
		},
		"order": func() error {
			_, err := tracker.AddOrder(ctx, "missing", OrderRequest{ItemName: "x", Quantity: 1})
			return err
		},
		"get": func() error { _, err := tracker.Get("missing"); return err },
	} {
		assert.True(t, errors.Is(op(), apperr.NotFound), name)
	}
}

func TestAddOrderAfterEndFails(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)
	_, err = tracker.AddOrder(ctx, s.ID, OrderRequest{ItemName: "Tea", Quantity: 1, UnitPrice: 1000})
	require.NoError(t, err)
	_, err = tracker.End(ctx, s.ID)
	require.NoError(t, err)

	_, err = tracker.AddOrder(ctx, s.ID, OrderRequest{ItemName: "Tea", Quantity: 1, UnitPrice: 1000})
	assert.True(t, errors.Is(err, apperr.State))

	got, err := tracker.Get(s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Orders, 1)
}

func TestValidation(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, StartRequest{DeviceName: "  ", PlayerCount: storage.PlayersOneTwo})
	assert.True(t, errors.Is(err, apperr.Validation), "empty device")

	_, err = tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: "7-8"})
	assert.True(t, errors.Is(err, apperr.Validation), "bad tier")

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo, CustomerName: "  Rami "})
	require.NoError(t, err)
	assert.Equal(t, "Rami", s.CustomerName)
	assert.Equal(t, storage.PaymentUnpaid, s.PaymentStatus)

	tests := []OrderRequest{
		{ItemName: "", Quantity: 1, UnitPrice: 1},
		{ItemName: "Tea", Quantity: 0, UnitPrice: 1},
		{ItemName: "Tea", Quantity: -2, UnitPrice: 1},
		{ItemName: "Tea", Quantity: 1, UnitPrice: -1},
	}
	for _, req := range tests {
		_, err := tracker.AddOrder(ctx, s.ID, req)
		assert.True(t, errors.Is(err, apperr.Validation), "%+v", req)
	}

	_, err = tracker.UpdatePaymentStatus(ctx, s.ID, "partial")
	assert.True(t, errors.Is(err, apperr.Validation))
}

func TestPaymentStatusOnEndedSession(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)
	_, err = tracker.End(ctx, s.ID)
	require.NoError(t, err)

	s, err = tracker.UpdatePaymentStatus(ctx, s.ID, storage.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, storage.PaymentPaid, s.PaymentStatus)
}

func TestAddProductOrder(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	order, err := tracker.AddProductOrder(ctx, s.ID, "3", 2)
	require.NoError(t, err)
	assert.Equal(t, "أندومي", order.ItemName)
	assert.Equal(t, 12000.0, order.TotalPrice)

	_, err = tracker.AddProductOrder(ctx, s.ID, "nope", 1)
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestStorageFailureKeepsMemoryState(t *testing.T) {
	tracker, _, ledger := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	ledger.failSave = true
	paused, err := tracker.Pause(ctx, s.ID)
	assert.True(t, errors.Is(err, apperr.Storage))
	assert.True(t, paused.IsPaused)

	got, err := tracker.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaused, "in-memory change must stand")
	assertPauseInvariant(t, got)

	err = tracker.UpdateRates(ctx, storage.RateSettings{RateOneTwoPlayers: 8000, RateThreeFourPlayers: 11000})
	assert.True(t, errors.Is(err, apperr.Storage))
	assert.Equal(t, 8000.0, tracker.Rates().RateOneTwoPlayers)
}

func TestListing(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	ctx := context.Background()

	var ids []string
	for _, device := range []string{"PS5-1", "PS5-2", "PS4-1"} {
		s, err := tracker.Start(ctx, StartRequest{DeviceName: device, PlayerCount: storage.PlayersOneTwo})
		require.NoError(t, err)
		ids = append(ids, s.ID)
		clock.Advance(time.Hour)
	}
	_, err := tracker.End(ctx, ids[0])
	require.NoError(t, err)

	active := tracker.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, ids[2], active[0].ID, "most recent first")

	ranged := tracker.ListByCreatedRange(epoch.Add(time.Hour), epoch.Add(2*time.Hour))
	require.Len(t, ranged, 2)
	assert.Equal(t, ids[2], ranged[0].ID)
	assert.Equal(t, ids[1], ranged[1].ID)

	assert.Len(t, tracker.ListByCreatedRange(time.Time{}, time.Time{}), 3)
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)
	s.DeviceName = "hacked"

	got, err := tracker.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "PS5-1", got.DeviceName)
}

func TestObservers(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	var events []EventType
	cancel := tracker.Subscribe(func(ev Event) {
		events = append(events, ev.Type)
	})

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)
	_, err = tracker.AddOrder(ctx, s.ID, OrderRequest{ItemName: "Tea", Quantity: 1, UnitPrice: 500})
	require.NoError(t, err)
	_, err = tracker.End(ctx, s.ID)
	require.NoError(t, err)
	_, err = tracker.End(ctx, s.ID)
	require.Error(t, err)

	cancel()
	_, err = tracker.UpdatePaymentStatus(ctx, s.ID, storage.PaymentPaid)
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventStarted, EventOrderAdded, EventEnded}, events)
}

func TestSettingsOperations(t *testing.T) {
	tracker, _, ledger := newTestTracker(t)
	ctx := context.Background()

	require.NotNil(t, ledger.settings, "defaults persisted on first run")
	assert.Len(t, tracker.Settings().Devices, 5)

	assert.True(t, errors.Is(tracker.UpdateRates(ctx, storage.RateSettings{RateOneTwoPlayers: 0, RateThreeFourPlayers: 1}), apperr.Validation))

	p, err := tracker.AddProduct(ctx, "Tea", 1500)
	require.NoError(t, err)
	_, err = tracker.AddProduct(ctx, "", 1500)
	assert.True(t, errors.Is(err, apperr.Validation))
	_, err = tracker.AddProduct(ctx, "Free", 0)
	assert.True(t, errors.Is(err, apperr.Validation))

	p.Price = 2000
	require.NoError(t, tracker.UpdateProduct(ctx, p))
	got, err := tracker.Product(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, got.Price)

	require.NoError(t, tracker.DeleteProduct(ctx, p.ID))
	assert.True(t, errors.Is(tracker.DeleteProduct(ctx, p.ID), apperr.NotFound))

	require.NoError(t, tracker.AddDevice(ctx, "PC-1"))
	assert.True(t, errors.Is(tracker.AddDevice(ctx, "PC-1"), apperr.Validation))
	assert.True(t, errors.Is(tracker.AddDevice(ctx, " "), apperr.Validation))
	require.NoError(t, tracker.RenameDevice(ctx, "PC-1", "PC-2"))
	assert.True(t, errors.Is(tracker.RenameDevice(ctx, "PC-2", "PS5-1"), apperr.Validation))
	require.NoError(t, tracker.RemoveDevice(ctx, "PC-2"))
	assert.True(t, errors.Is(tracker.RemoveDevice(ctx, "PC-2"), apperr.NotFound))

	require.NoError(t, tracker.ResetSettings(ctx))
	assert.Equal(t, storage.DefaultSettings().Devices, tracker.Settings().Devices)
	assert.Equal(t, storage.DefaultSettings().Devices, ledger.settings.Devices)
}

func TestImportAndClear(t *testing.T) {
	tracker, _, ledger := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	end := epoch.Add(time.Hour)
	snapshot := storage.Snapshot{
		Sessions: []storage.Session{
			{ID: "a", DeviceName: "PS4-1", PlayerCount: storage.PlayersOneTwo, StartTime: epoch, EndTime: &end, CreatedAt: epoch},
			{ID: "b", DeviceName: "PS4-2", PlayerCount: storage.PlayersThreeFour, StartTime: epoch, IsPaused: true, CreatedAt: epoch},
		},
		Settings: storage.Settings{Rates: storage.RateSettings{RateOneTwoPlayers: 5000, RateThreeFourPlayers: 9000}},
	}
	require.NoError(t, tracker.Import(ctx, snapshot))

	assert.Len(t, tracker.List(), 2)
	assert.Len(t, ledger.sessions, 2)
	assert.Equal(t, 5000.0, tracker.Rates().RateOneTwoPlayers)
	assert.Len(t, tracker.Settings().Devices, 5, "missing devices fall back to defaults")

	b, err := tracker.Get("b")
	require.NoError(t, err)
	assert.False(t, b.IsPaused, "pause without start is repaired")
	assert.Equal(t, storage.PaymentUnpaid, b.PaymentStatus)

	dup := storage.Snapshot{Sessions: []storage.Session{
		{ID: "x", DeviceName: "PS4-1", PlayerCount: storage.PlayersOneTwo},
		{ID: "x", DeviceName: "PS4-1", PlayerCount: storage.PlayersOneTwo},
	}}
	assert.True(t, errors.Is(tracker.Import(ctx, dup), apperr.Validation))
	assert.Len(t, tracker.List(), 2, "rejected import leaves state alone")

	require.NoError(t, tracker.Clear(ctx))
	assert.Empty(t, tracker.List())
	assert.Empty(t, ledger.sessions)
	assert.Equal(t, storage.DefaultRates(), tracker.Rates())
	require.NotNil(t, ledger.settings)
}

func TestDeleteSession(t *testing.T) {
	tracker, _, ledger := newTestTracker(t)
	ctx := context.Background()

	s, err := tracker.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersOneTwo})
	require.NoError(t, err)

	require.NoError(t, tracker.DeleteSession(ctx, s.ID))
	assert.Empty(t, ledger.sessions)
	assert.True(t, errors.Is(tracker.DeleteSession(ctx, s.ID), apperr.NotFound))
}

func TestReloadFromBolt(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "lounge.bolt"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	clock := &TestClock{CurrentTime: epoch}

	first := NewTracker(store.Ledger(), Config{Clock: clock}, zerolog.Nop())
	require.NoError(t, first.Load(ctx))

	s, err := first.Start(ctx, StartRequest{DeviceName: "PS5-1", PlayerCount: storage.PlayersThreeFour})
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	_, err = first.Pause(ctx, s.ID)
	require.NoError(t, err)

	second := NewTracker(store.Ledger(), Config{Clock: clock}, zerolog.Nop())
	require.NoError(t, second.Load(ctx))

	got, err := second.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaused)
	require.NotNil(t, got.PauseStartTime)
	assert.True(t, got.PauseStartTime.Equal(epoch.Add(5*time.Minute)))
	assert.Equal(t, 5*time.Minute, billing.ActiveDuration(&got, clock.Now().Add(time.Hour)))
}
