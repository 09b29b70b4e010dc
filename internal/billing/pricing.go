package billing

import (
	"time"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/shopspring/decimal"
)

// RateFor returns the hourly rate for a tier. There is no fallback tier.
func RateFor(rates storage.RateSettings, tier storage.PlayerCount) (float64, error) {
	var rate float64
	switch tier {
	case storage.PlayersOneTwo:
		rate = rates.RateOneTwoPlayers
	case storage.PlayersThreeFour:
		rate = rates.RateThreeFourPlayers
	default:
		return 0, apperr.New(apperr.Validation, "billing.rate", "unknown player tier %q", tier)
	}
	if rate <= 0 {
		return 0, apperr.New(apperr.Configuration, "billing.rate", "no rate configured for tier %s", tier)
	}
	return rate, nil
}

// WithDefaults fills every missing rate from defaults.
func WithDefaults(rates, defaults storage.RateSettings) storage.RateSettings {
	if rates.RateOneTwoPlayers <= 0 {
		rates.RateOneTwoPlayers = defaults.RateOneTwoPlayers
	}
	if rates.RateThreeFourPlayers <= 0 {
		rates.RateThreeFourPlayers = defaults.RateThreeFourPlayers
	}
	return rates
}

// SessionCost prices d at the session's tier rate. Negative durations cost nothing.
func SessionCost(s *storage.Session, rates storage.RateSettings, d time.Duration) (float64, error) {
	rate, err := RateFor(rates, s.PlayerCount)
	if err != nil {
		return 0, err
	}
	return Hours(DisplayDuration(d)) * rate, nil
}

// OrderTotal returns quantity × unit price.
func OrderTotal(quantity int, unitPrice float64) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

// OrdersTotal sums the stored order totals. Summation is exact so the result
// does not depend on order sequence.
func OrdersTotal(s *storage.Session) float64 {
	sum := decimal.Zero
	for _, o := range s.Orders {
		sum = sum.Add(decimal.NewFromFloat(o.TotalPrice))
	}
	return sum.InexactFloat64()
}

// SessionTotal returns the time cost plus the orders total, using the final
// duration for ended sessions and the active duration at now otherwise.
func SessionTotal(s *storage.Session, rates storage.RateSettings, now time.Time) (float64, error) {
	cost, err := SessionCost(s, rates, BillableDuration(s, now))
	if err != nil {
		return 0, err
	}
	return cost + OrdersTotal(s), nil
}

// Breakdown is the itemised bill of one session.
type Breakdown struct {
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
	Hours       float64       `json:"hours"`
	Rate        float64       `json:"rate"`
	SessionCost float64       `json:"sessionCost"`
	OrdersTotal float64       `json:"ordersTotal"`
	Total       float64       `json:"total"`
}

// BreakdownOf itemises a session at now.
func BreakdownOf(s *storage.Session, rates storage.RateSettings, now time.Time) (Breakdown, error) {
	rate, err := RateFor(rates, s.PlayerCount)
	if err != nil {
		return Breakdown{}, err
	}

	d := DisplayDuration(BillableDuration(s, now))
	cost := Hours(d) * rate
	orders := OrdersTotal(s)

	return Breakdown{
		Duration:    d,
		DurationMS:  d.Milliseconds(),
		Hours:       Hours(d),
		Rate:        rate,
		SessionCost: cost,
		OrdersTotal: orders,
		Total:       cost + orders,
	}, nil
}
