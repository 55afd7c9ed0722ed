package handlers

import (
	"encoding/json"
	"net/http"

	"betatrakt/services/authflow"
)

// AuthHandler exposes the device authorization state machine over HTTP.
type AuthHandler struct {
	flow *authflow.Service
}

// NewAuthHandler creates an auth handler over the given state machine.
func NewAuthHandler(flow *authflow.Service) *AuthHandler {
	return &AuthHandler{flow: flow}
}

// Start requests a fresh device code, discarding any active attempt.
// POST /api/auth/start
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	code, err := h.flow.RequestCode(r.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userCode":        code.UserCode,
		"verificationUrl": code.VerificationURL,
		"expiresIn":       code.ExpiresIn,
		"interval":        code.Interval,
	})
}

// Status returns a snapshot of the machine, including the derived countdown.
// GET /api/auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.flow.Snapshot())
}

// Reset tears down the active authorization attempt.
// POST /api/auth/reset
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.flow.Close()
	writeJSON(w, http.StatusOK, h.flow.Snapshot())
}
