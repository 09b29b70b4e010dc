// Package api exposes the lounge over a local HTTP JSON API.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/lounge/internal/gate"
	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr      string
	Location        *time.Location
	MaxDocumentRows int
}

// Server is the API HTTP server.
type Server struct {
	config   Config
	tracker  *session.Tracker
	calc     *report.Calculator
	gate     *gate.Gate
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, tracker *session.Tracker, calc *report.Calculator, g *gate.Gate, logger zerolog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	s := &Server{
		config:  cfg,
		tracker: tracker,
		calc:    calc,
		gate:    g,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	access := NewAccessHandler(s.gate, s.logger)

	// Public routes
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/unlock", access.Unlock).Methods("POST")
	s.router.HandleFunc("/api/gate", access.Status).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(GateMiddleware(s.gate))

	api.HandleFunc("/lock", access.Lock).Methods("POST")
	api.HandleFunc("/pin", access.SetPIN).Methods("PUT")
	api.HandleFunc("/pin", access.ClearPIN).Methods("DELETE")

	sessions := NewSessionsHandler(s.tracker, s.calc, s.config.Location, s.logger)
	api.HandleFunc("/sessions", sessions.List).Methods("GET")
	api.HandleFunc("/sessions", sessions.Start).Methods("POST")
	api.HandleFunc("/sessions/active", sessions.ListActive).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessions.Get).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessions.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/pause", sessions.Pause).Methods("POST")
	api.HandleFunc("/sessions/{id}/resume", sessions.Resume).Methods("POST")
	api.HandleFunc("/sessions/{id}/toggle", sessions.Toggle).Methods("POST")
	api.HandleFunc("/sessions/{id}/end", sessions.End).Methods("POST")
	api.HandleFunc("/sessions/{id}/orders", sessions.AddOrder).Methods("POST")
	api.HandleFunc("/sessions/{id}/payment", sessions.UpdatePayment).Methods("PUT")
	api.HandleFunc("/sessions/{id}/invoice", sessions.Invoice).Methods("GET")

	reports := NewReportsHandler(s.tracker, s.calc, s.config.Location, s.config.MaxDocumentRows, s.logger)
	api.HandleFunc("/report", reports.Report).Methods("GET")
	api.HandleFunc("/dashboard", reports.Dashboard).Methods("GET")

	settings := NewSettingsHandler(s.tracker, s.logger)
	api.HandleFunc("/settings", settings.Get).Methods("GET")
	api.HandleFunc("/settings/reset", settings.Reset).Methods("POST")
	api.HandleFunc("/settings/rates", settings.UpdateRates).Methods("PUT")
	api.HandleFunc("/settings/products", settings.CreateProduct).Methods("POST")
	api.HandleFunc("/settings/products/{id}", settings.UpdateProduct).Methods("PUT")
	api.HandleFunc("/settings/products/{id}", settings.DeleteProduct).Methods("DELETE")
	api.HandleFunc("/settings/devices", settings.AddDevice).Methods("POST")
	api.HandleFunc("/settings/devices/{name}", settings.RenameDevice).Methods("PUT")
	api.HandleFunc("/settings/devices/{name}", settings.RemoveDevice).Methods("DELETE")

	data := NewDataHandler(s.tracker, s.calc, s.logger)
	api.HandleFunc("/data/export", data.Export).Methods("GET")
	api.HandleFunc("/data/backup", data.Backup).Methods("GET")
	api.HandleFunc("/data/import", data.Import).Methods("POST")
	api.HandleFunc("/data", data.Clear).Methods("DELETE")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"active_sessions": len(s.tracker.ListActive()),
		"pin_set":         s.gate.HasPIN(),
	})
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
