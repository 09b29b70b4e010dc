package session

import (
	"context"
	"strings"
	"time"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/storage"
)

// StartRequest describes a new session.
type StartRequest struct {
	DeviceName   string
	PlayerCount  storage.PlayerCount
	CustomerName string
}

// OrderRequest describes a line item to attach to a session.
type OrderRequest struct {
	ItemName  string
	Quantity  int
	UnitPrice float64
}

// Start creates a new active session.
func (t *Tracker) Start(ctx context.Context, req StartRequest) (storage.Session, error) {
	const op = "session.start"

	device := strings.TrimSpace(req.DeviceName)
	if device == "" {
		return storage.Session{}, apperr.New(apperr.Validation, op, "device name is required")
	}
	if !req.PlayerCount.Valid() {
		return storage.Session{}, apperr.New(apperr.Validation, op, "invalid player count %q", req.PlayerCount)
	}

	now := t.clock.Now()
	s := &storage.Session{
		ID:            t.newID(),
		DeviceName:    device,
		PlayerCount:   req.PlayerCount,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		StartTime:     now,
		Orders:        []storage.Order{},
		PaymentStatus: storage.PaymentUnpaid,
		CreatedAt:     now,
	}

	t.mu.Lock()
	for _, other := range t.sessions {
		if !other.Ended() && other.DeviceName == device {
			t.logger.Warn().
				Str("device", device).
				Str("active_session_id", other.ID).
				Msg("Starting a second session on a device that is already in use")
			break
		}
	}
	t.sessions[s.ID] = s
	err := t.saveSession(ctx, op, s)
	out := s.Clone()
	rates := t.settings.Rates
	t.mu.Unlock()

	t.logger.Info().
		Str("session_id", out.ID).
		Str("device", out.DeviceName).
		Str("players", string(out.PlayerCount)).
		Msg("Started session")

	t.notify(Event{Type: EventStarted, At: now, Session: &out, Rates: rates})
	return out, err
}

// Pause suspends billing for an active session.
func (t *Tracker) Pause(ctx context.Context, id string) (storage.Session, error) {
	return t.transition(ctx, "session.pause", id, EventPaused, func(s *storage.Session, now time.Time) error {
		if s.Ended() {
			return apperr.New(apperr.State, "session.pause", "session %s has ended", s.ID)
		}
		if s.IsPaused {
			return apperr.New(apperr.State, "session.pause", "session %s is already paused", s.ID)
		}
		s.IsPaused = true
		s.PauseStartTime = &now
		return nil
	})
}

// Resume restarts billing for a paused session.
func (t *Tracker) Resume(ctx context.Context, id string) (storage.Session, error) {
	return t.transition(ctx, "session.resume", id, EventResumed, func(s *storage.Session, now time.Time) error {
		if s.Ended() {
			return apperr.New(apperr.State, "session.resume", "session %s has ended", s.ID)
		}
		if !s.IsPaused {
			return apperr.New(apperr.State, "session.resume", "session %s is not paused", s.ID)
		}
		closePause(s, now)
		return nil
	})
}

// TogglePause pauses an active session or resumes a paused one.
func (t *Tracker) TogglePause(ctx context.Context, id string) (storage.Session, error) {
	s, err := t.Get(id)
	if err != nil {
		return storage.Session{}, err
	}
	if s.IsPaused {
		return t.Resume(ctx, id)
	}
	return t.Pause(ctx, id)
}

// AddOrder appends a line item to an open session.
func (t *Tracker) AddOrder(ctx context.Context, id string, req OrderRequest) (storage.Order, error) {
	const op = "session.add_order"

	item := strings.TrimSpace(req.ItemName)
	if item == "" {
		return storage.Order{}, apperr.New(apperr.Validation, op, "item name is required")
	}
	if req.Quantity <= 0 {
		return storage.Order{}, apperr.New(apperr.Validation, op, "quantity must be positive, got %d", req.Quantity)
	}
	if req.UnitPrice < 0 {
		return storage.Order{}, apperr.New(apperr.Validation, op, "unit price must not be negative")
	}

	var order storage.Order
	s, err := t.transition(ctx, op, id, EventOrderAdded, func(s *storage.Session, now time.Time) error {
		if s.Ended() {
			return apperr.New(apperr.State, op, "session %s has ended", s.ID)
		}
		order = storage.Order{
			ID:         t.newID(),
			SessionID:  s.ID,
			ItemName:   item,
			Quantity:   req.Quantity,
			UnitPrice:  req.UnitPrice,
			TotalPrice: billing.OrderTotal(req.Quantity, req.UnitPrice),
			CreatedAt:  now,
		}
		s.Orders = append(s.Orders, order)
		return nil
	})
	if s.ID == "" {
		return storage.Order{}, err
	}
	return order, err
}

// AddProductOrder orders quantity units of a catalog product.
func (t *Tracker) AddProductOrder(ctx context.Context, id, productID string, quantity int) (storage.Order, error) {
	product, err := t.Product(productID)
	if err != nil {
		return storage.Order{}, err
	}
	return t.AddOrder(ctx, id, OrderRequest{
		ItemName:  product.Name,
		Quantity:  quantity,
		UnitPrice: product.Price,
	})
}

// UpdatePaymentStatus sets the payment status. Ended sessions accept it.
func (t *Tracker) UpdatePaymentStatus(ctx context.Context, id string, status storage.PaymentStatus) (storage.Session, error) {
	const op = "session.update_payment"

	if !status.Valid() {
		return storage.Session{}, apperr.New(apperr.Validation, op, "invalid payment status %q", status)
	}

	return t.transition(ctx, op, id, EventPaymentUpdated, func(s *storage.Session, _ time.Time) error {
		s.PaymentStatus = status
		return nil
	})
}

// End terminates a session. An open pause is folded into the paused total
// before the end time is recorded.
func (t *Tracker) End(ctx context.Context, id string) (storage.Session, error) {
	return t.transition(ctx, "session.end", id, EventEnded, func(s *storage.Session, now time.Time) error {
		if s.Ended() {
			return apperr.New(apperr.State, "session.end", "session %s has already ended", s.ID)
		}
		if s.IsPaused {
			closePause(s, now)
		}
		s.EndTime = &now
		return nil
	})
}

// DeleteSession removes a session from memory and storage.
func (t *Tracker) DeleteSession(ctx context.Context, id string) error {
	const op = "session.delete"

	t.mu.Lock()
	s, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return apperr.New(apperr.NotFound, op, "session %s not found", id)
	}
	delete(t.sessions, id)
	out := s.Clone()
	rates := t.settings.Rates

	var err error
	if serr := t.ledger.DeleteSession(ctx, id); serr != nil {
		t.logger.Error().Err(serr).Str("session_id", id).Msg("Failed to delete session from storage")
		err = apperr.Wrap(apperr.Storage, op, serr)
	}
	t.mu.Unlock()

	t.logger.Info().Str("session_id", id).Str("device", out.DeviceName).Msg("Deleted session")
	t.notify(Event{Type: EventDeleted, At: t.clock.Now(), Session: &out, Rates: rates})
	return err
}

// closePause folds the open pause interval into the paused total.
func closePause(s *storage.Session, now time.Time) {
	if s.PauseStartTime != nil {
		if paused := now.Sub(*s.PauseStartTime); paused > 0 {
			s.TotalPausedDuration += paused
		}
	}
	s.IsPaused = false
	s.PauseStartTime = nil
}

// transition applies fn to a session under the store lock, writes the result
// through and notifies observers. A rejected transition leaves the session
// untouched. A failed write returns the updated session with a Storage error.
func (t *Tracker) transition(ctx context.Context, op, id string, evType EventType, fn func(*storage.Session, time.Time) error) (storage.Session, error) {
	now := t.clock.Now()

	t.mu.Lock()
	current, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return storage.Session{}, apperr.New(apperr.NotFound, op, "session %s not found", id)
	}

	next := current.Clone()
	if err := fn(&next, now); err != nil {
		t.mu.Unlock()
		t.logger.Debug().Err(err).Str("session_id", id).Str("op", op).Msg("Transition rejected")
		return storage.Session{}, err
	}

	*current = next
	err := t.saveSession(ctx, op, current)
	out := current.Clone()
	rates := t.settings.Rates
	t.mu.Unlock()

	t.logger.Info().
		Str("session_id", id).
		Str("device", out.DeviceName).
		Str("event", string(evType)).
		Msg("Session updated")

	ev := Event{Type: evType, At: now, Session: &out, Rates: rates}
	if evType == EventOrderAdded && len(out.Orders) > 0 {
		order := out.Orders[len(out.Orders)-1]
		ev.Order = &order
	}
	t.notify(ev)
	return out, err
}
