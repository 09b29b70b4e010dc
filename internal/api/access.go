package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goodtune/lounge/internal/gate"
	"github.com/goodtune/lounge/internal/metrics"
	"github.com/rs/zerolog"
)

// AccessHandler handles unlocking and PIN management.
type AccessHandler struct {
	gate   *gate.Gate
	logger zerolog.Logger
}

// NewAccessHandler creates a new access handler.
func NewAccessHandler(g *gate.Gate, logger zerolog.Logger) *AccessHandler {
	return &AccessHandler{
		gate:   g,
		logger: logger.With().Str("handler", "access").Logger(),
	}
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// UnlockResponse carries a new unlock token.
type UnlockResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Unlock exchanges the PIN for a token and sets the token cookie.
func (h *AccessHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, expires, err := h.gate.Unlock(r.Context(), req.PIN)
	switch {
	case err == nil:
		metrics.UnlockAttempts.WithLabelValues("ok").Inc()
	case errors.Is(err, gate.ErrInvalidPIN):
		metrics.UnlockAttempts.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error":             http.StatusText(http.StatusUnauthorized),
			"message":           err.Error(),
			"code":              http.StatusUnauthorized,
			"remainingAttempts": h.gate.Status().RemainingAttempts,
		})
		return
	case errors.Is(err, gate.ErrLockedOut):
		metrics.UnlockAttempts.WithLabelValues("locked").Inc()
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, gate.ErrNoPIN):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		writeAppError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, UnlockResponse{Token: token, ExpiresAt: expires})
}

// Status reports whether a PIN is set and whether unlocks are locked out.
func (h *AccessHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gate.Status())
}

// Lock revokes every unlock token.
func (h *AccessHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.gate.Lock()
	http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// SetPIN sets or replaces the PIN.
func (h *AccessHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.gate.SetPIN(r.Context(), req.PIN); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearPIN removes the PIN.
func (h *AccessHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.ClearPIN(r.Context()); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
