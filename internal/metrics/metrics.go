package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session lifecycle metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_sessions_started_total",
			Help: "Total sessions started",
		},
		[]string{"device", "players"},
	)

	SessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_sessions_ended_total",
			Help: "Total sessions ended",
		},
		[]string{"device", "players"},
	)

	SessionPauses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_session_pauses_total",
			Help: "Total session pauses",
		},
		[]string{"device"},
	)

	BillableMinutes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_billable_minutes_total",
			Help: "Billable minutes of ended sessions",
		},
		[]string{"device", "players"},
	)

	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lounge_session_duration_minutes",
			Help:    "Billable duration of ended sessions in minutes",
			Buckets: []float64{15, 30, 60, 90, 120, 180, 240, 360},
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lounge_active_sessions",
			Help: "Number of sessions not yet ended",
		},
	)

	// Order metrics
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_orders_total",
			Help: "Total order lines added",
		},
		[]string{"item"},
	)

	OrderRevenue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lounge_order_amount_total",
			Help: "Sum of order line totals",
		},
	)

	// Payment metrics
	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_payment_updates_total",
			Help: "Payment status changes",
		},
		[]string{"status"},
	)

	// Daily rollover metrics
	DailyRevenue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lounge_last_day_revenue",
			Help: "Paid revenue of the last closed business day",
		},
	)

	DailyUnpaid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lounge_last_day_unpaid",
			Help: "Unpaid amount of the last closed business day",
		},
	)

	DailySessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lounge_last_day_sessions",
			Help: "Sessions created in the last closed business day",
		},
	)

	// HTTP API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lounge_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Gate metrics
	UnlockAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_unlock_attempts_total",
			Help: "PIN unlock attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsEnded,
		SessionPauses,
		BillableMinutes,
		SessionDuration,
		ActiveSessions,
		OrdersTotal,
		OrderRevenue,
		PaymentsTotal,
		DailyRevenue,
		DailyUnpaid,
		DailySessions,
		APIRequestsTotal,
		APIRequestDuration,
		UnlockAttempts,
	)
}

// Recorder turns tracker events into metric updates. Subscribe Observe to a
// session.Tracker.
type Recorder struct {
	active func() int
}

// NewRecorder creates a recorder. active, when set, refreshes the active
// sessions gauge after every event.
func NewRecorder(active func() int) *Recorder {
	return &Recorder{active: active}
}

// Observe records one tracker event.
func (r *Recorder) Observe(ev session.Event) {
	s := ev.Session
	switch ev.Type {
	case session.EventStarted:
		SessionsStarted.WithLabelValues(s.DeviceName, string(s.PlayerCount)).Inc()
	case session.EventPaused:
		SessionPauses.WithLabelValues(s.DeviceName).Inc()
	case session.EventEnded:
		d := billing.DisplayDuration(billing.FinalDuration(s)).Minutes()
		SessionsEnded.WithLabelValues(s.DeviceName, string(s.PlayerCount)).Inc()
		BillableMinutes.WithLabelValues(s.DeviceName, string(s.PlayerCount)).Add(d)
		SessionDuration.Observe(d)
	case session.EventOrderAdded:
		if ev.Order != nil {
			OrdersTotal.WithLabelValues(ev.Order.ItemName).Add(float64(ev.Order.Quantity))
			OrderRevenue.Add(ev.Order.TotalPrice)
		}
	case session.EventPaymentUpdated:
		PaymentsTotal.WithLabelValues(string(s.PaymentStatus)).Inc()
	}

	if r.active != nil {
		ActiveSessions.Set(float64(r.active()))
	}
}

// RecordRollover publishes a closed day's statistics. It matches
// report.RolloverFunc.
func RecordRollover(_ time.Time, stats report.Stats) {
	DailyRevenue.Set(stats.TotalRevenue)
	DailyUnpaid.Set(stats.UnpaidAmount)
	DailySessions.Set(float64(stats.Count))
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
