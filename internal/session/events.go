package session

import (
	"time"

	"github.com/goodtune/lounge/internal/storage"
)

// EventType identifies a committed store mutation.
type EventType string

const (
	EventStarted         EventType = "session.started"
	EventPaused          EventType = "session.paused"
	EventResumed         EventType = "session.resumed"
	EventOrderAdded      EventType = "session.order_added"
	EventPaymentUpdated  EventType = "session.payment_updated"
	EventEnded           EventType = "session.ended"
	EventDeleted         EventType = "session.deleted"
	EventSettingsChanged EventType = "settings.changed"
	// EventReplaced follows a load, import or clear; observers should discard
	// anything they derived from earlier state.
	EventReplaced EventType = "state.replaced"
)

// Event describes a mutation after it has been applied in memory.
type Event struct {
	Type    EventType
	At      time.Time
	Session *storage.Session // nil for settings and replace events
	Order   *storage.Order   // set for EventOrderAdded
	Rates   storage.RateSettings
}

// Observer receives events. Observers run synchronously after the store lock
// is released and must not block.
type Observer func(Event)

// Subscribe registers an observer and returns a function that removes it.
func (t *Tracker) Subscribe(o Observer) func() {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()

	id := t.nextObserver
	t.nextObserver++
	t.observers[id] = o

	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		delete(t.observers, id)
	}
}

func (t *Tracker) notify(ev Event) {
	t.obsMu.Lock()
	observers := make([]Observer, 0, len(t.observers))
	for _, o := range t.observers {
		observers = append(observers, o)
	}
	t.obsMu.Unlock()

	for _, o := range observers {
		o(ev)
	}
}
