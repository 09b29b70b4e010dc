package report

import (
	"time"

	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// totalKey identifies an ended session's bill. An ended session's duration
// and orders never change, so its total only depends on the rates.
type totalKey struct {
	id     string
	end    int64
	orders int
	rates  storage.RateSettings
}

// Calculator prices sessions, caching the totals of ended sessions.
type Calculator struct {
	cache    *lru.Cache[totalKey, float64]
	fallback *storage.RateSettings
}

// NewCalculator creates a calculator holding up to size cached totals.
// When fallback is non-nil, missing rates are filled from it.
func NewCalculator(size int, fallback *storage.RateSettings) (*Calculator, error) {
	cache, err := lru.New[totalKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &Calculator{cache: cache, fallback: fallback}, nil
}

// Rates applies the fallback to rates.
func (c *Calculator) Rates(rates storage.RateSettings) storage.RateSettings {
	if c.fallback == nil {
		return rates
	}
	return billing.WithDefaults(rates, *c.fallback)
}

// Total returns the session total at now.
func (c *Calculator) Total(s *storage.Session, rates storage.RateSettings, now time.Time) (float64, error) {
	rates = c.Rates(rates)
	if !s.Ended() {
		return billing.SessionTotal(s, rates, now)
	}

	key := totalKey{id: s.ID, end: s.EndTime.UnixNano(), orders: len(s.Orders), rates: rates}
	if total, ok := c.cache.Get(key); ok {
		return total, nil
	}

	total, err := billing.SessionTotal(s, rates, now)
	if err != nil {
		return 0, err
	}
	c.cache.Add(key, total)
	return total, nil
}

// Breakdown itemises a session at now.
func (c *Calculator) Breakdown(s *storage.Session, rates storage.RateSettings, now time.Time) (billing.Breakdown, error) {
	return billing.BreakdownOf(s, c.Rates(rates), now)
}

// Aggregate computes Stats over sessions.
func (c *Calculator) Aggregate(sessions []storage.Session, rates storage.RateSettings) (Stats, error) {
	return aggregate(sessions, c.totalAt(rates, time.Time{}))
}

// Summarize computes the export summary over sessions.
func (c *Calculator) Summarize(sessions []storage.Session, rates storage.RateSettings) (Summary, error) {
	return summarize(sessions, c.totalAt(rates, time.Time{}))
}

// Live computes the dashboard for the day containing now.
func (c *Calculator) Live(sessions []storage.Session, rates storage.RateSettings, now time.Time, loc *time.Location) (Dashboard, error) {
	rates = c.Rates(rates)
	return live(sessions, rates, now, loc, c.totalAt(rates, now))
}

func (c *Calculator) totalAt(rates storage.RateSettings, now time.Time) totalFunc {
	return func(s *storage.Session) (float64, error) {
		return c.Total(s, rates, now)
	}
}

// Len returns the number of cached totals.
func (c *Calculator) Len() int {
	return c.cache.Len()
}

// Observe drops cached totals when the ledger is replaced. Subscribe it to a
// session.Tracker.
func (c *Calculator) Observe(ev session.Event) {
	switch ev.Type {
	case session.EventReplaced, session.EventDeleted:
		c.cache.Purge()
	}
}
