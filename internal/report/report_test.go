package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now   = time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	rates = storage.RateSettings{RateOneTwoPlayers: 7000, RateThreeFourPlayers: 10000}
)

func ended(id string, created time.Time, played time.Duration, tier storage.PlayerCount, status storage.PaymentStatus, orders ...storage.Order) storage.Session {
	end := created.Add(played)
	return storage.Session{
		ID:            id,
		DeviceName:    "PS5-1",
		PlayerCount:   tier,
		StartTime:     created,
		EndTime:       &end,
		Orders:        orders,
		PaymentStatus: status,
		CreatedAt:     created,
	}
}

func active(id string, created time.Time, tier storage.PlayerCount) storage.Session {
	return storage.Session{
		ID:            id,
		DeviceName:    "PS4-1",
		PlayerCount:   tier,
		StartTime:     created,
		Orders:        []storage.Order{},
		PaymentStatus: storage.PaymentUnpaid,
		CreatedAt:     created,
	}
}

func order(total float64) storage.Order {
	return storage.Order{ItemName: "Coffee", Quantity: 1, UnitPrice: total, TotalPrice: total, CreatedAt: now}
}

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(16, nil)
	require.NoError(t, err)
	return c
}

func TestPeriodRange(t *testing.T) {
	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	from, to, err := PeriodToday.Range(now, time.UTC, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, midnight, from)
	assert.Equal(t, midnight.AddDate(0, 0, 1).Add(-time.Nanosecond), to)

	from, to, err = PeriodYesterday.Range(now, time.UTC, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, midnight.AddDate(0, 0, -1), from)
	assert.Equal(t, midnight.Add(-time.Nanosecond), to)

	from, to, err = PeriodWeek.Range(now, time.UTC, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, midnight.AddDate(0, 0, -7), from)
	assert.True(t, to.IsZero())

	from, _, err = PeriodMonth.Range(now, time.UTC, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), from)

	from, to, err = PeriodAll.Range(now, time.UTC, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, from.IsZero() && to.IsZero())
}

func TestPeriodCustom(t *testing.T) {
	day := time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC)

	from, to, err := PeriodCustom.Range(now, time.UTC, day, day)
	require.NoError(t, err)
	todayFrom, todayTo, _ := PeriodToday.Range(now, time.UTC, time.Time{}, time.Time{})
	assert.Equal(t, todayFrom, from)
	assert.Equal(t, todayTo, to)

	_, _, err = PeriodCustom.Range(now, time.UTC, day, time.Time{})
	assert.Error(t, err)

	_, _, err = PeriodCustom.Range(now, time.UTC, day, day.AddDate(0, 0, -2))
	assert.Error(t, err)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodToday, p)

	p, err = ParsePeriod(" Week ")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("fortnight")
	assert.Error(t, err)
}

func TestFilterBoundaries(t *testing.T) {
	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	sessions := []storage.Session{
		ended("before", midnight.Add(-time.Second), time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
		ended("first", midnight, time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
		ended("last", midnight.Add(23*time.Hour+59*time.Minute), time.Minute, storage.PlayersOneTwo, storage.PaymentUnpaid),
		ended("after", midnight.AddDate(0, 0, 1), time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
	}

	day := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	from, to, err := PeriodCustom.Range(now, time.UTC, day, day)
	require.NoError(t, err)

	got := Apply(sessions, Filter{From: from, To: to})
	require.Len(t, got, 2)
	assert.Equal(t, "last", got[0].ID)
	assert.Equal(t, "first", got[1].ID)

	got = Apply(sessions, Filter{From: from, To: to, Status: storage.PaymentPaid})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].ID)

	assert.Empty(t, Apply(sessions, Filter{Device: "PS4-3"}))
}

func TestAggregatePartitionsRevenue(t *testing.T) {
	created := now.Add(-3 * time.Hour)
	sessions := []storage.Session{
		ended("a", created, time.Hour, storage.PlayersOneTwo, storage.PaymentPaid, order(3000)),
		ended("b", created, 30*time.Minute, storage.PlayersThreeFour, storage.PaymentUnpaid),
		active("c", created, storage.PlayersOneTwo),
	}

	stats, err := Aggregate(sessions, rates)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 2, stats.EndedCount)
	assert.InDelta(t, 10000, stats.TotalRevenue, 1e-9)
	assert.InDelta(t, 5000, stats.UnpaidAmount, 1e-9)
	assert.InDelta(t, 1.5, stats.TotalHours, 1e-9)

	var endedTotal float64
	for i := range sessions {
		if sessions[i].Ended() {
			total, err := newCalc(t).Total(&sessions[i], rates, now)
			require.NoError(t, err)
			endedTotal += total
		}
	}
	assert.InDelta(t, endedTotal, stats.TotalRevenue+stats.UnpaidAmount, 1e-9)

	summary, err := Summarize(sessions, rates)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		TotalSessions:  3,
		ActiveSessions: 1,
		EndedSessions:  2,
		PaidSessions:   1,
		UnpaidSessions: 1,
		TotalRevenue:   10000,
		TotalUnpaid:    5000,
		TotalHours:     1.5,
	}, summary)
}

func TestSummarizeCountsPaymentOfEndedSessionsOnly(t *testing.T) {
	created := now.Add(-3 * time.Hour)
	sessions := []storage.Session{
		ended("a", created, time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
		active("b", created, storage.PlayersOneTwo),
		active("c", created, storage.PlayersThreeFour),
	}

	summary, err := Summarize(sessions, rates)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActiveSessions)
	assert.Equal(t, 1, summary.EndedSessions)
	assert.Equal(t, 1, summary.PaidSessions)
	assert.Equal(t, 0, summary.UnpaidSessions)
	assert.Equal(t, summary.EndedSessions, summary.PaidSessions+summary.UnpaidSessions)
	assert.Zero(t, summary.TotalUnpaid)
}

func TestAggregateEmpty(t *testing.T) {
	stats, err := Aggregate(nil, rates)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestLive(t *testing.T) {
	today := now.Add(-3 * time.Hour)
	sessions := []storage.Session{
		ended("a", today, time.Hour, storage.PlayersOneTwo, storage.PaymentPaid, order(3000)),
		ended("b", today, 30*time.Minute, storage.PlayersThreeFour, storage.PaymentUnpaid),
		active("c", now.Add(-30*time.Minute), storage.PlayersOneTwo),
		ended("d", now.AddDate(0, 0, -1), time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
	}

	d, err := newCalc(t).Live(sessions, rates, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, d.ActiveSessions)
	assert.Equal(t, 3, d.TodaySessions)
	assert.InDelta(t, 10000, d.TodayRevenue, 1e-9)
	assert.InDelta(t, 3500, d.RunningTotal, 1e-9)
	assert.Equal(t, 2*time.Hour, d.TodayPlayed)
	assert.Equal(t, int64(2*time.Hour/time.Millisecond), d.TodayPlayedMS)
}

func TestCalculatorCache(t *testing.T) {
	c := newCalc(t)
	s := ended("a", now.Add(-2*time.Hour), time.Hour, storage.PlayersOneTwo, storage.PaymentPaid)

	for i := 0; i < 3; i++ {
		total, err := c.Total(&s, rates, now)
		require.NoError(t, err)
		assert.InDelta(t, 7000, total, 1e-9)
	}
	assert.Equal(t, 1, c.Len())

	// A rate change is a new key.
	total, err := c.Total(&s, storage.RateSettings{RateOneTwoPlayers: 8000, RateThreeFourPlayers: 10000}, now)
	require.NoError(t, err)
	assert.InDelta(t, 8000, total, 1e-9)
	assert.Equal(t, 2, c.Len())

	running := active("b", now.Add(-time.Hour), storage.PlayersOneTwo)
	_, err = c.Total(&running, rates, now)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len(), "active sessions are never cached")

	c.Observe(session.Event{Type: session.EventOrderAdded})
	assert.Equal(t, 2, c.Len())
	c.Observe(session.Event{Type: session.EventReplaced})
	assert.Equal(t, 0, c.Len())
}

func TestCalculatorFallback(t *testing.T) {
	s := ended("a", now.Add(-2*time.Hour), time.Hour, storage.PlayersOneTwo, storage.PaymentPaid)

	_, err := newCalc(t).Total(&s, storage.RateSettings{}, now)
	assert.ErrorIs(t, err, apperr.Configuration)

	defaults := storage.DefaultRates()
	c, err := NewCalculator(4, &defaults)
	require.NoError(t, err)
	total, err := c.Total(&s, storage.RateSettings{}, now)
	require.NoError(t, err)
	assert.InDelta(t, 7000, total, 1e-9)
}

func TestFormatter(t *testing.T) {
	f := DefaultFormatter()
	assert.Equal(t, "00:00:00", f.Clock(-5*time.Second))
	assert.Equal(t, "03:25:07", f.Clock(3*time.Hour+25*time.Minute+7*time.Second))
	assert.Equal(t, "10,000 SYP", f.Amount(10000))
	assert.Equal(t, "5h 21m", f.Hours(5*time.Hour+21*time.Minute))
	assert.Equal(t, "45m", f.Hours(45*time.Minute))
	assert.Equal(t, "2h", f.Hours(2*time.Hour))
	assert.Equal(t, "0m", f.Hours(-time.Minute))

	_, err := NewFormatter("not a locale!", "SYP")
	assert.Error(t, err)

	ar, err := NewFormatter("ar-SY", "ل.س")
	require.NoError(t, err)
	assert.Contains(t, ar.Hours(2*time.Hour), "س")
}

func TestBuildExport(t *testing.T) {
	c := newCalc(t)
	older := ended("a", now.Add(-3*time.Hour), time.Hour, storage.PlayersOneTwo, storage.PaymentPaid, order(3000))
	newer := active("b", now.Add(-30*time.Minute), storage.PlayersOneTwo)

	export, err := c.BuildExport([]storage.Session{older, newer}, storage.DefaultSettings(), now)
	require.NoError(t, err)

	assert.Equal(t, ExportVersion, export.Metadata.Version)
	assert.Equal(t, 2, export.Metadata.TotalSessions)
	require.Len(t, export.Sessions, 2)

	assert.Equal(t, "b", export.Sessions[0].ID)
	assert.Equal(t, "active", export.Sessions[0].Status)
	assert.Empty(t, export.Sessions[0].EndTime)
	assert.InDelta(t, 3500, export.Sessions[0].Total, 1e-9)

	row := export.Sessions[1]
	assert.Equal(t, "ended", row.Status)
	assert.Equal(t, "2024-03-05 12:00:00", row.StartTime)
	assert.Equal(t, "2024-03-05 13:00:00", row.EndTime)
	assert.Equal(t, int64(time.Hour/time.Millisecond), row.Duration)
	assert.InDelta(t, 10000, row.Total, 1e-9)
	require.Len(t, row.Orders, 1)

	assert.Equal(t, 1, export.Summary.PaidSessions)
	assert.InDelta(t, 10000, export.Summary.TotalRevenue, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, export))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	for _, key := range []string{"metadata", "settings", "sessions", "summary"} {
		assert.Contains(t, decoded, key)
	}
}

func TestWriteDocumentCapsRows(t *testing.T) {
	c := newCalc(t)
	var sessions []storage.Session
	for i := 0; i < 20; i++ {
		s := ended(fmt.Sprintf("s%02d", i), now.Add(-time.Duration(i+1)*time.Hour), 30*time.Minute, storage.PlayersOneTwo, storage.PaymentPaid)
		s.DeviceName = fmt.Sprintf("DEV-%02d", i)
		sessions = append(sessions, s)
	}
	stats, err := c.Aggregate(sessions, rates)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = c.WriteDocument(&buf, Document{
		Title:       "Daily report",
		PeriodLabel: "today",
		GeneratedAt: now,
		Sessions:    sessions,
		Rates:       rates,
		Stats:       stats,
	}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, DefaultMaxRows, strings.Count(out, "DEV-"))
	assert.Contains(t, out, "... and 5 more sessions")
	assert.Contains(t, out, "70,000 SYP")
	assert.Contains(t, out, "Daily report")
}

func TestWriteInvoice(t *testing.T) {
	c := newCalc(t)
	s := ended("inv-1", now.Add(-2*time.Hour), time.Hour, storage.PlayersOneTwo, storage.PaymentUnpaid,
		storage.Order{ItemName: "Mate", Quantity: 2, UnitPrice: 3000, TotalPrice: 6000, CreatedAt: now})

	inv, err := c.BuildInvoice(s, rates, now)
	require.NoError(t, err)
	require.Len(t, inv.Lines, 2)
	assert.InDelta(t, 7000, inv.Lines[0].Amount, 1e-9)
	assert.Equal(t, "01:00:00", inv.Lines[0].Quantity)

	var buf bytes.Buffer
	require.NoError(t, WriteInvoice(&buf, inv, nil))
	out := buf.String()
	assert.Contains(t, out, "Mate")
	assert.Contains(t, out, "TOTAL: 13,000 SYP")
	assert.Contains(t, out, "Payment: unpaid")
}

type staticSource struct {
	sessions []storage.Session
}

func (s staticSource) List() []storage.Session      { return s.sessions }
func (s staticSource) Rates() storage.RateSettings { return rates }

func TestRolloverScheduler(t *testing.T) {
	yesterday := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	source := staticSource{sessions: []storage.Session{
		ended("a", yesterday, time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
		ended("b", yesterday, time.Hour, storage.PlayersThreeFour, storage.PaymentUnpaid),
		ended("c", now, time.Hour, storage.PlayersOneTwo, storage.PaymentPaid),
	}}

	rs, err := NewRolloverScheduler(source, newCalc(t), time.UTC, "00:00", zerolog.Nop())
	require.NoError(t, err)

	rs.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), rs.calculateNextRollover())

	rs.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 1, 0, time.UTC) }
	var gotDay time.Time
	var gotStats Stats
	rs.OnRollover = func(day time.Time, stats Stats) {
		gotDay, gotStats = day, stats
	}
	rs.performRollover()

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), gotDay)
	assert.Equal(t, 2, gotStats.Count)
	assert.InDelta(t, 7000, gotStats.TotalRevenue, 1e-9)
	assert.InDelta(t, 10000, gotStats.UnpaidAmount, 1e-9)

	late, err := NewRolloverScheduler(source, newCalc(t), time.UTC, "23:30", zerolog.Nop())
	require.NoError(t, err)
	late.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC), late.calculateNextRollover())

	_, err = NewRolloverScheduler(source, newCalc(t), time.UTC, "noon", zerolog.Nop())
	assert.Error(t, err)
}

func TestRolloverSchedulerStartStop(t *testing.T) {
	rs, err := NewRolloverScheduler(staticSource{}, newCalc(t), time.UTC, "00:00", zerolog.Nop())
	require.NoError(t, err)
	rs.Start()
	rs.Stop()
}
