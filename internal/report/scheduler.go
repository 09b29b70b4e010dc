package report

import (
	"time"

	"github.com/goodtune/lounge/internal/storage"
	"github.com/rs/zerolog"
)

// SessionSource supplies the sessions and rates a report is built from.
type SessionSource interface {
	List() []storage.Session
	Rates() storage.RateSettings
}

// RolloverFunc receives the closing day and its statistics.
type RolloverFunc func(day time.Time, stats Stats)

// RolloverScheduler closes out each business day at a fixed time of day,
// logging the day's statistics and handing them to OnRollover.
type RolloverScheduler struct {
	source       SessionSource
	calc         *Calculator
	location     *time.Location
	rolloverTime time.Time // only hour and minute are used
	logger       zerolog.Logger
	stopChan     chan struct{}
	now          func() time.Time

	OnRollover RolloverFunc
}

// NewRolloverScheduler creates a scheduler firing daily at rolloverTime (HH:MM).
func NewRolloverScheduler(source SessionSource, calc *Calculator, loc *time.Location, rolloverTime string, logger zerolog.Logger) (*RolloverScheduler, error) {
	parsedTime, err := time.Parse("15:04", rolloverTime)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	return &RolloverScheduler{
		source:       source,
		calc:         calc,
		location:     loc,
		rolloverTime: parsedTime,
		logger:       logger.With().Str("component", "rollover-scheduler").Logger(),
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}, nil
}

// Start begins the scheduler
func (rs *RolloverScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Str("rollover_time", rs.rolloverTime.Format("15:04")).
		Msg("Daily rollover scheduler started")
}

// Stop stops the scheduler
func (rs *RolloverScheduler) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Daily rollover scheduler stopped")
}

func (rs *RolloverScheduler) run() {
	for {
		next := rs.calculateNextRollover()
		wait := next.Sub(rs.now())

		rs.logger.Debug().
			Time("next_rollover", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next daily rollover")

		select {
		case <-time.After(wait):
			rs.performRollover()
		case <-rs.stopChan:
			return
		}
	}
}

func (rs *RolloverScheduler) calculateNextRollover() time.Time {
	now := rs.now().In(rs.location)

	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.rolloverTime.Hour(), rs.rolloverTime.Minute(), 0, 0,
		rs.location,
	)
	if now.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// performRollover summarises the day that just closed. Rolling over at
// midnight closes the previous calendar day; any later time closes the
// current one.
func (rs *RolloverScheduler) performRollover() {
	now := rs.now()
	day := StartOfDay(now, rs.location)
	if rs.rolloverTime.Hour() == 0 && rs.rolloverTime.Minute() == 0 {
		day = day.AddDate(0, 0, -1)
	}

	stats, err := rs.DayStats(day)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to compute daily statistics")
		return
	}

	rs.logger.Info().
		Str("day", day.Format("2006-01-02")).
		Int("sessions", stats.Count).
		Int("ended", stats.EndedCount).
		Float64("revenue", stats.TotalRevenue).
		Float64("unpaid", stats.UnpaidAmount).
		Float64("hours", stats.TotalHours).
		Msg("Daily rollover complete")

	if rs.OnRollover != nil {
		rs.OnRollover(day, stats)
	}
}

// DayStats aggregates the sessions created on day.
func (rs *RolloverScheduler) DayStats(day time.Time) (Stats, error) {
	sessions := Apply(rs.source.List(), Filter{
		From: StartOfDay(day, rs.location),
		To:   EndOfDay(day, rs.location),
	})
	return rs.calc.Aggregate(sessions, rs.source.Rates())
}
