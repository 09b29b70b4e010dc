package api

import (
	"net/http"

	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/rs/zerolog"
)

// DataHandler handles exports, backups and bulk replacement.
type DataHandler struct {
	tracker *session.Tracker
	calc    *report.Calculator
	logger  zerolog.Logger
}

// NewDataHandler creates a new data handler.
func NewDataHandler(tracker *session.Tracker, calc *report.Calculator, logger zerolog.Logger) *DataHandler {
	return &DataHandler{
		tracker: tracker,
		calc:    calc,
		logger:  logger.With().Str("handler", "data").Logger(),
	}
}

// Export returns the normalized export document.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Export()
	export, err := h.calc.BuildExport(snapshot.Sessions, snapshot.Settings, h.tracker.Now())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="lounge-export.json"`)
	writeJSON(w, http.StatusOK, export)
}

// Backup returns a snapshot that Import accepts.
func (h *DataHandler) Backup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="lounge-backup.json"`)
	writeJSON(w, http.StatusOK, h.tracker.Export())
}

// Import replaces every session and the settings with the posted snapshot.
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	var snapshot storage.Snapshot
	if err := decodeJSON(r, &snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot: "+err.Error())
		return
	}

	if err := h.tracker.Import(r.Context(), snapshot); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	h.logger.Info().Int("sessions", len(snapshot.Sessions)).Msg("Snapshot imported")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": len(snapshot.Sessions),
	})
}

// Clear removes every session and restores the default settings.
func (h *DataHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Clear(r.Context()); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
