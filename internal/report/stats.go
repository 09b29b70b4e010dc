package report

import (
	"time"

	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/shopspring/decimal"
)

// Stats is the aggregate over a set of sessions. Money and hours only count
// ended sessions.
type Stats struct {
	Count        int     `json:"count"`
	EndedCount   int     `json:"endedCount"`
	TotalRevenue float64 `json:"totalRevenue"`
	TotalHours   float64 `json:"totalHours"`
	UnpaidAmount float64 `json:"unpaidAmount"`
}

// Summary is the export summary block.
type Summary struct {
	TotalSessions  int     `json:"totalSessions"`
	ActiveSessions int     `json:"activeSessions"`
	EndedSessions  int     `json:"endedSessions"`
	PaidSessions   int     `json:"paidSessions"`
	UnpaidSessions int     `json:"unpaidSessions"`
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalUnpaid    float64 `json:"totalUnpaid"`
	TotalHours     float64 `json:"totalHours"`
}

// Dashboard is the live view of the current day.
type Dashboard struct {
	ActiveSessions int           `json:"activeSessions"`
	TodaySessions  int           `json:"todaySessions"`
	TodayRevenue   float64       `json:"todayRevenue"`
	TodayPlayed    time.Duration `json:"-"`
	TodayPlayedMS  int64         `json:"todayPlayedMs"`
	RunningTotal   float64       `json:"runningTotal"` // accrued by active sessions so far
}

type totalFunc func(s *storage.Session) (float64, error)

// Aggregate computes Stats over sessions.
func Aggregate(sessions []storage.Session, rates storage.RateSettings) (Stats, error) {
	return aggregate(sessions, func(s *storage.Session) (float64, error) {
		return billing.SessionTotal(s, rates, time.Time{})
	})
}

func aggregate(sessions []storage.Session, total totalFunc) (Stats, error) {
	var (
		stats   = Stats{Count: len(sessions)}
		revenue = decimal.Zero
		unpaid  = decimal.Zero
		hours   time.Duration
	)

	for i := range sessions {
		s := &sessions[i]
		if !s.Ended() {
			continue
		}
		stats.EndedCount++
		hours += billing.FinalDuration(s)

		t, err := total(s)
		if err != nil {
			return Stats{}, err
		}
		switch s.PaymentStatus {
		case storage.PaymentPaid:
			revenue = revenue.Add(decimal.NewFromFloat(t))
		case storage.PaymentUnpaid:
			unpaid = unpaid.Add(decimal.NewFromFloat(t))
		}
	}

	stats.TotalRevenue = revenue.InexactFloat64()
	stats.UnpaidAmount = unpaid.InexactFloat64()
	stats.TotalHours = billing.Hours(hours)
	return stats, nil
}

// Summarize computes the export summary over sessions.
func Summarize(sessions []storage.Session, rates storage.RateSettings) (Summary, error) {
	return summarize(sessions, func(s *storage.Session) (float64, error) {
		return billing.SessionTotal(s, rates, time.Time{})
	})
}

func summarize(sessions []storage.Session, total totalFunc) (Summary, error) {
	stats, err := aggregate(sessions, total)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalSessions: stats.Count,
		EndedSessions: stats.EndedCount,
		TotalRevenue:  stats.TotalRevenue,
		TotalUnpaid:   stats.UnpaidAmount,
		TotalHours:    stats.TotalHours,
	}
	for i := range sessions {
		if !sessions[i].Ended() {
			summary.ActiveSessions++
			continue
		}
		// Paid and unpaid counts partition the ended sessions only
		switch sessions[i].PaymentStatus {
		case storage.PaymentPaid:
			summary.PaidSessions++
		case storage.PaymentUnpaid:
			summary.UnpaidSessions++
		}
	}
	return summary, nil
}

// Live computes the dashboard for the day containing now.
func Live(sessions []storage.Session, rates storage.RateSettings, now time.Time, loc *time.Location) (Dashboard, error) {
	return live(sessions, rates, now, loc, func(s *storage.Session) (float64, error) {
		return billing.SessionTotal(s, rates, now)
	})
}

func live(sessions []storage.Session, rates storage.RateSettings, now time.Time, loc *time.Location, total totalFunc) (Dashboard, error) {
	var (
		d       Dashboard
		revenue = decimal.Zero
		running = decimal.Zero
	)
	today := StartOfDay(now, loc)

	for i := range sessions {
		s := &sessions[i]

		if !s.Ended() {
			d.ActiveSessions++
			d.TodayPlayed += billing.DisplayDuration(billing.ActiveDuration(s, now))
			t, err := billing.SessionTotal(s, rates, now)
			if err != nil {
				return Dashboard{}, err
			}
			running = running.Add(decimal.NewFromFloat(t))
		}

		if s.CreatedAt.Before(today) {
			continue
		}
		d.TodaySessions++
		if !s.Ended() {
			continue
		}
		d.TodayPlayed += billing.DisplayDuration(billing.FinalDuration(s))
		if s.PaymentStatus == storage.PaymentPaid {
			t, err := total(s)
			if err != nil {
				return Dashboard{}, err
			}
			revenue = revenue.Add(decimal.NewFromFloat(t))
		}
	}

	d.TodayRevenue = revenue.InexactFloat64()
	d.RunningTotal = running.InexactFloat64()
	d.TodayPlayedMS = d.TodayPlayed.Milliseconds()
	return d, nil
}
