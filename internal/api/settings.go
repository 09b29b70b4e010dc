package api

import (
	"net/http"

	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SettingsHandler manages rates, the product catalog and devices.
type SettingsHandler struct {
	tracker *session.Tracker
	logger  zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(tracker *session.Tracker, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		tracker: tracker,
		logger:  logger.With().Str("handler", "settings").Logger(),
	}
}

func (h *SettingsHandler) settings(w http.ResponseWriter, err error) {
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Settings())
}

// Get returns the current settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Settings())
}

// UpdateRates replaces the hourly rates.
func (h *SettingsHandler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	var rates storage.RateSettings
	if err := decodeJSON(r, &rates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.settings(w, h.tracker.UpdateRates(r.Context(), rates))
}

type productRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CreateProduct adds a product to the catalog.
func (h *SettingsHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	product, err := h.tracker.AddProduct(r.Context(), req.Name, req.Price)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct changes a product's name and price.
func (h *SettingsHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.settings(w, h.tracker.UpdateProduct(r.Context(), storage.Product{
		ID:    mux.Vars(r)["id"],
		Name:  req.Name,
		Price: req.Price,
	}))
}

// DeleteProduct removes a product from the catalog.
func (h *SettingsHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	h.settings(w, h.tracker.DeleteProduct(r.Context(), mux.Vars(r)["id"]))
}

type deviceRequest struct {
	Name string `json:"name"`
}

// AddDevice registers a device.
func (h *SettingsHandler) AddDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.settings(w, h.tracker.AddDevice(r.Context(), req.Name))
}

// RenameDevice renames a device.
func (h *SettingsHandler) RenameDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.settings(w, h.tracker.RenameDevice(r.Context(), mux.Vars(r)["name"], req.Name))
}

// RemoveDevice removes a device.
func (h *SettingsHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	h.settings(w, h.tracker.RemoveDevice(r.Context(), mux.Vars(r)["name"]))
}

// Reset restores the default settings.
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.settings(w, h.tracker.ResetSettings(r.Context()))
}
