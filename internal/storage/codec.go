package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ExportTimeLayout is the human-readable layout used by report exports.
const ExportTimeLayout = "2006-01-02 15:04:05"

// sessionWire is the persisted shape of a Session. Durations are stored in
// milliseconds and instants as RFC 3339 strings.
type sessionWire struct {
	ID                  string          `json:"id"`
	DeviceName          string          `json:"deviceName"`
	PlayerCount         PlayerCount     `json:"playerCount"`
	CustomerName        string          `json:"customerName,omitempty"`
	StartTime           json.RawMessage `json:"startTime,omitempty"`
	EndTime             json.RawMessage `json:"endTime,omitempty"`
	IsPaused            bool            `json:"isPaused"`
	PauseStartTime      json.RawMessage `json:"pauseStartTime,omitempty"`
	TotalPausedDuration int64           `json:"totalPausedDuration"`
	Orders              []Order         `json:"orders"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	CreatedAt           json.RawMessage `json:"createdAt,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Session) MarshalJSON() ([]byte, error) {
	orders := s.Orders
	if orders == nil {
		orders = []Order{}
	}

	w := sessionWire{
		ID:                  s.ID,
		DeviceName:          s.DeviceName,
		PlayerCount:         s.PlayerCount,
		CustomerName:        s.CustomerName,
		StartTime:           encodeInstant(s.StartTime),
		IsPaused:            s.IsPaused,
		TotalPausedDuration: s.TotalPausedDuration.Milliseconds(),
		Orders:              orders,
		PaymentStatus:       s.PaymentStatus,
		CreatedAt:           encodeInstant(s.CreatedAt),
	}
	if s.EndTime != nil {
		w.EndTime = encodeInstant(*s.EndTime)
	}
	if s.PauseStartTime != nil {
		w.PauseStartTime = encodeInstant(*s.PauseStartTime)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. It accepts both freshly
// serialized sessions and ones that were already decoded and re-encoded, so
// loading is idempotent.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w sessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	start, err := DecodeInstant(w.StartTime)
	if err != nil {
		return fmt.Errorf("failed to parse startTime: %w", err)
	}
	created, err := DecodeInstant(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to parse createdAt: %w", err)
	}
	switch {
	case start == nil && created == nil:
		return fmt.Errorf("session %s has neither startTime nor createdAt", w.ID)
	case start == nil:
		start = created
	case created == nil:
		created = start
	}

	end, err := DecodeInstant(w.EndTime)
	if err != nil {
		return fmt.Errorf("failed to parse endTime: %w", err)
	}
	pauseStart, err := DecodeInstant(w.PauseStartTime)
	if err != nil {
		return fmt.Errorf("failed to parse pauseStartTime: %w", err)
	}

	status := w.PaymentStatus
	if status == "" {
		status = PaymentUnpaid
	}

	*s = Session{
		ID:                  w.ID,
		DeviceName:          w.DeviceName,
		PlayerCount:         w.PlayerCount,
		CustomerName:        w.CustomerName,
		StartTime:           *start,
		EndTime:             end,
		IsPaused:            w.IsPaused,
		PauseStartTime:      pauseStart,
		TotalPausedDuration: time.Duration(w.TotalPausedDuration) * time.Millisecond,
		Orders:              w.Orders,
		PaymentStatus:       status,
		CreatedAt:           *created,
	}
	if s.Orders == nil {
		s.Orders = []Order{}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler with the same instant tolerance
// as Session.
func (o *Order) UnmarshalJSON(data []byte) error {
	type orderAlias Order
	var w struct {
		orderAlias
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	created, err := DecodeInstant(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to parse order createdAt: %w", err)
	}

	*o = Order(w.orderAlias)
	if created != nil {
		o.CreatedAt = *created
	}
	return nil
}

func encodeInstant(t time.Time) json.RawMessage {
	return json.RawMessage(strconv.Quote(t.Format(time.RFC3339Nano)))
}

// DecodeInstant parses an instant from JSON. It accepts RFC 3339 strings, the
// export layout and epoch milliseconds. Absent and null values decode to nil.
func DecodeInstant(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid instant %s", raw)
		}
		t := time.UnixMilli(ms)
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}

	t, err := ParseInstant(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseInstant parses an instant string in any of the accepted layouts.
func ParseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, ExportTimeLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid instant %q", s)
}
