package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SessionView is a session with its bill at the time of the response.
type SessionView struct {
	Session storage.Session   `json:"session"`
	Bill    billing.Breakdown `json:"bill"`
}

// SessionsHandler handles session lifecycle requests.
type SessionsHandler struct {
	tracker  *session.Tracker
	calc     *report.Calculator
	location *time.Location
	logger   zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(tracker *session.Tracker, calc *report.Calculator, loc *time.Location, logger zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		tracker:  tracker,
		calc:     calc,
		location: loc,
		logger:   logger.With().Str("handler", "sessions").Logger(),
	}
}

func (h *SessionsHandler) view(s storage.Session) (SessionView, error) {
	bill, err := h.calc.Breakdown(&s, h.tracker.Rates(), h.tracker.Now())
	return SessionView{Session: s, Bill: bill}, err
}

func (h *SessionsHandler) views(sessions []storage.Session) ([]SessionView, error) {
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		v, err := h.view(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// respond writes the session with its bill, or err.
func (h *SessionsHandler) respond(w http.ResponseWriter, status int, s storage.Session, err error) {
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	v, err := h.view(s)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, status, v)
}

// List returns sessions matching the period, device and status query
// parameters, most recent first.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r, h.tracker.Now(), h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions := report.Apply(h.tracker.List(), filter)
	views, err := h.views(sessions)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": views,
		"count":    len(views),
	})
}

// ListActive returns the sessions that have not ended.
func (h *SessionsHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	views, err := h.views(h.tracker.ListActive())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": views,
		"count":    len(views),
	})
}

// Get returns one session.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.Get(mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, s, err)
}

type startRequest struct {
	DeviceName   string              `json:"deviceName"`
	PlayerCount  storage.PlayerCount `json:"playerCount"`
	CustomerName string              `json:"customerName"`
}

// Start starts a session.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s, err := h.tracker.Start(r.Context(), session.StartRequest{
		DeviceName:   req.DeviceName,
		PlayerCount:  req.PlayerCount,
		CustomerName: req.CustomerName,
	})
	h.respond(w, http.StatusCreated, s, err)
}

// Pause pauses a session.
func (h *SessionsHandler) Pause(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.Pause(r.Context(), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, s, err)
}

// Resume resumes a paused session.
func (h *SessionsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.Resume(r.Context(), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, s, err)
}

// Toggle pauses a running session or resumes a paused one.
func (h *SessionsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.TogglePause(r.Context(), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, s, err)
}

// End ends a session.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.End(r.Context(), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, s, err)
}

type orderRequest struct {
	ProductID string  `json:"productId,omitempty"`
	ItemName  string  `json:"itemName,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
}

// AddOrder adds an order line, either from the product catalog or free form.
func (h *SessionsHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var (
		order storage.Order
		err   error
	)
	if req.ProductID != "" {
		order, err = h.tracker.AddProductOrder(r.Context(), id, req.ProductID, req.Quantity)
	} else {
		order, err = h.tracker.AddOrder(r.Context(), id, session.OrderRequest{
			ItemName:  req.ItemName,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
		})
	}
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

type paymentRequest struct {
	Status storage.PaymentStatus `json:"status"`
}

// UpdatePayment sets a session's payment status.
func (h *SessionsHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s, err := h.tracker.UpdatePaymentStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	h.respond(w, http.StatusOK, s, err)
}

// Delete removes a session.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invoice renders a session's printable bill.
func (h *SessionsHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.Get(mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	inv, err := h.calc.BuildInvoice(s, h.tracker.Rates(), h.tracker.Now())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, inv)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteInvoice(w, inv, nil); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write invoice")
	}
}

// filterFromQuery builds a report filter from period, from, to, device and
// status query parameters. Without a period every session matches.
func filterFromQuery(r *http.Request, now time.Time, loc *time.Location) (report.Filter, error) {
	q := r.URL.Query()

	period := report.PeriodAll
	if p := q.Get("period"); p != "" {
		var err error
		if period, err = report.ParsePeriod(p); err != nil {
			return report.Filter{}, err
		}
	}

	fromDay, err := parseDay(q.Get("from"), loc)
	if err != nil {
		return report.Filter{}, err
	}
	toDay, err := parseDay(q.Get("to"), loc)
	if err != nil {
		return report.Filter{}, err
	}
	if period == report.PeriodAll && (!fromDay.IsZero() || !toDay.IsZero()) {
		period = report.PeriodCustom
	}

	from, to, err := period.Range(now, loc, fromDay, toDay)
	if err != nil {
		return report.Filter{}, err
	}

	var status storage.PaymentStatus
	if s := q.Get("status"); s != "" {
		status = storage.PaymentStatus(s)
		if !status.Valid() {
			return report.Filter{}, fmt.Errorf("invalid status: %s (must be paid or unpaid)", s)
		}
	}

	return report.Filter{From: from, To: to, Device: q.Get("device"), Status: status}, nil
}
