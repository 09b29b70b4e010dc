// Package billing computes billable time and cost for lounge sessions.
//
// Every function is pure: callers pass the instant to evaluate at, so a
// duration and the cost derived from it always agree.
package billing

import (
	"time"

	"github.com/goodtune/lounge/internal/storage"
)

// ActiveDuration returns the billable time of a session that has not ended,
// evaluated at now. The result may be slightly negative if now precedes the
// start; use DisplayDuration before showing it.
func ActiveDuration(s *storage.Session, now time.Time) time.Duration {
	d := now.Sub(s.StartTime) - s.TotalPausedDuration
	if s.IsPaused && s.PauseStartTime != nil {
		d -= now.Sub(*s.PauseStartTime)
	}
	return d
}

// FinalDuration returns the fixed billable time of an ended session.
// It returns zero for a session without an end time.
func FinalDuration(s *storage.Session) time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime) - s.TotalPausedDuration
}

// BillableDuration returns FinalDuration for ended sessions and
// ActiveDuration at now otherwise.
func BillableDuration(s *storage.Session, now time.Time) time.Duration {
	if s.Ended() {
		return FinalDuration(s)
	}
	return ActiveDuration(s, now)
}

// DisplayDuration clamps d at zero.
func DisplayDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// Hours converts d to fractional hours.
func Hours(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 3_600_000
}
