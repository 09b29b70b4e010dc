package api

import (
	"net/http"
	"time"

	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/rs/zerolog"
)

// ReportsHandler serves statistics and printable reports.
type ReportsHandler struct {
	tracker  *session.Tracker
	calc     *report.Calculator
	location *time.Location
	maxRows  int
	logger   zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(tracker *session.Tracker, calc *report.Calculator, loc *time.Location, maxRows int, logger zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		tracker:  tracker,
		calc:     calc,
		location: loc,
		maxRows:  maxRows,
		logger:   logger.With().Str("handler", "reports").Logger(),
	}
}

// Report aggregates the filtered sessions. With format=text it renders the
// printable document instead.
func (h *ReportsHandler) Report(w http.ResponseWriter, r *http.Request) {
	now := h.tracker.Now()

	// Reports default to today, unlike the session listing.
	if r.URL.Query().Get("period") == "" && r.URL.Query().Get("from") == "" {
		q := r.URL.Query()
		q.Set("period", string(report.PeriodToday))
		r.URL.RawQuery = q.Encode()
	}

	filter, err := filterFromQuery(r, now, h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions := report.Apply(h.tracker.List(), filter)
	rates := h.tracker.Rates()

	stats, err := h.calc.Aggregate(sessions, rates)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err := h.calc.WriteDocument(w, report.Document{
			Title:       "Sessions report",
			PeriodLabel: r.URL.Query().Get("period"),
			GeneratedAt: now,
			Sessions:    sessions,
			Rates:       rates,
			Stats:       stats,
			MaxRows:     h.maxRows,
		}, nil)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to write report document")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":  filter.From,
		"to":    filter.To,
		"stats": stats,
	})
}

// Dashboard returns the live view of the current day.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.calc.Live(h.tracker.List(), h.tracker.Rates(), h.tracker.Now(), h.location)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
