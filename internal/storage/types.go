package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlayerCount is the player tier a session is billed at.
type PlayerCount string

const (
	PlayersOneTwo    PlayerCount = "1-2"
	PlayersThreeFour PlayerCount = "3-4"
)

// Valid reports whether p is a known tier.
func (p PlayerCount) Valid() bool {
	return p == PlayersOneTwo || p == PlayersThreeFour
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown tiers.
func (p *PlayerCount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	tier := PlayerCount(strings.TrimSpace(s))
	if !tier.Valid() {
		return fmt.Errorf("invalid player count: %s (must be 1-2 or 3-4)", s)
	}
	*p = tier
	return nil
}

// PaymentStatus records whether a session has been settled.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPaid || s == PaymentUnpaid
}

// UnmarshalJSON implements json.Unmarshaler to normalize status to lowercase.
func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	// Older backups omit the field entirely.
	if raw == "" {
		*s = PaymentUnpaid
		return nil
	}

	normalized := PaymentStatus(strings.ToLower(raw))
	if !normalized.Valid() {
		return fmt.Errorf("invalid payment status: %s (must be paid or unpaid)", raw)
	}
	*s = normalized
	return nil
}

// Session is one rental occupancy of a device.
type Session struct {
	ID                  string
	DeviceName          string
	PlayerCount         PlayerCount
	CustomerName        string
	StartTime           time.Time
	EndTime             *time.Time
	IsPaused            bool
	PauseStartTime      *time.Time
	TotalPausedDuration time.Duration
	Orders              []Order
	PaymentStatus       PaymentStatus
	CreatedAt           time.Time
}

// Ended reports whether the session has been terminated.
func (s *Session) Ended() bool {
	return s.EndTime != nil
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (s Session) Clone() Session {
	out := s
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	if s.PauseStartTime != nil {
		t := *s.PauseStartTime
		out.PauseStartTime = &t
	}
	out.Orders = make([]Order, len(s.Orders))
	copy(out.Orders, s.Orders)
	return out
}

// Order is one line item purchased during a session.
type Order struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	ItemName   string    `json:"itemName"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unitPrice"`
	TotalPrice float64   `json:"totalPrice"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RateSettings holds the hourly rate per player tier.
type RateSettings struct {
	RateOneTwoPlayers    float64 `json:"rateOneTwoPlayers"`
	RateThreeFourPlayers float64 `json:"rateThreeFourPlayers"`
}

// Product is a catalog entry used to populate orders.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Settings is the process-wide configuration the ledger is billed against.
type Settings struct {
	Rates    RateSettings `json:"rates"`
	Products []Product    `json:"products"`
	Devices  []string     `json:"devices"`
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	out := s
	out.Products = append([]Product(nil), s.Products...)
	out.Devices = append([]string(nil), s.Devices...)
	return out
}

// Snapshot is the full backup payload.
type Snapshot struct {
	Sessions []Session `json:"sessions"`
	Settings Settings  `json:"settings"`
}

// AccessPIN is the stored credential of the access gate.
type AccessPIN struct {
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccessAttempts is the failed unlock state of the access gate. It is kept
// in the store so every process sharing it sees the same lockout.
type AccessAttempts struct {
	Failures    int       `json:"failures"`
	LockedUntil time.Time `json:"locked_until,omitzero"`
}
