// Package report derives statistics, exports and printable documents from
// sets of lounge sessions.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/lounge/internal/storage"
)

// Period is a named date preset for report filters.
type Period string

const (
	PeriodAll       Period = "all"
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
	PeriodMonth     Period = "month"
	PeriodCustom    Period = "custom"
)

// ParsePeriod parses a period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PeriodAll, PeriodToday, PeriodYesterday, PeriodWeek, PeriodMonth, PeriodCustom:
		return p, nil
	case "":
		return PeriodToday, nil
	}
	return "", fmt.Errorf("invalid period: %s (must be all, today, yesterday, week, month or custom)", s)
}

// StartOfDay returns local midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Range resolves a period to an inclusive createdAt range. A zero bound is
// open. For PeriodCustom, from and to name the first and last day.
func (p Period) Range(now time.Time, loc *time.Location, from, to time.Time) (time.Time, time.Time, error) {
	today := StartOfDay(now, loc)

	switch p {
	case PeriodAll:
		return time.Time{}, time.Time{}, nil
	case PeriodToday:
		return today, EndOfDay(now, loc), nil
	case PeriodYesterday:
		return today.AddDate(0, 0, -1), today.Add(-time.Nanosecond), nil
	case PeriodWeek:
		return today.AddDate(0, 0, -7), time.Time{}, nil
	case PeriodMonth:
		return today.AddDate(0, -1, 0), time.Time{}, nil
	case PeriodCustom:
		if from.IsZero() || to.IsZero() {
			return time.Time{}, time.Time{}, fmt.Errorf("custom period needs a start and end date")
		}
		start, end := StartOfDay(from, loc), EndOfDay(to, loc)
		if end.Before(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("custom period ends before it starts")
		}
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("invalid period: %s", p)
}

// Filter selects sessions. All set criteria must match.
type Filter struct {
	From   time.Time             // inclusive createdAt lower bound, zero for none
	To     time.Time             // inclusive createdAt upper bound, zero for none
	Device string                // exact device name, empty for all
	Status storage.PaymentStatus // empty for all
}

// Match reports whether s satisfies every criterion of f.
func (f Filter) Match(s *storage.Session) bool {
	if !f.From.IsZero() && s.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.CreatedAt.After(f.To) {
		return false
	}
	if f.Device != "" && s.DeviceName != f.Device {
		return false
	}
	if f.Status != "" && s.PaymentStatus != f.Status {
		return false
	}
	return true
}

// Apply returns the sessions matching f, most recent first.
func Apply(sessions []storage.Session, f Filter) []storage.Session {
	out := make([]storage.Session, 0, len(sessions))
	for i := range sessions {
		if f.Match(&sessions[i]) {
			out = append(out, sessions[i])
		}
	}
	storage.SortByCreatedDesc(out)
	return out
}
