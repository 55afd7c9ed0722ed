package handlers

import (
	"encoding/json"
	"net/http"

	"betatrakt/services/trakt"
)

// RelayHandler proxies browser requests to the Trakt API so the client
// secret and access token never appear in cross-origin requests. Upstream
// status and body pass through verbatim; non-JSON bodies are wrapped as
// {"message": ...} so the caller always receives JSON.
type RelayHandler struct {
	client *trakt.Client
}

// NewRelayHandler creates a relay over the given Trakt client.
func NewRelayHandler(client *trakt.Client) *RelayHandler {
	return &RelayHandler{client: client}
}

// DeviceCode forwards a device-code request upstream.
// POST /api/trakt/device-code
func (h *RelayHandler) DeviceCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		jsonError(w, "Missing clientId", http.StatusBadRequest)
		return
	}

	upstream, err := h.client.Forward(r.Context(), "/oauth/device/code", "", "", map[string]string{
		"client_id": req.ClientID,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeUpstream(w, upstream)
}

// DeviceToken forwards a token-exchange attempt upstream.
// POST /api/trakt/device-token
func (h *RelayHandler) DeviceToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
		DeviceCode   string `json:"deviceCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" || req.DeviceCode == "" {
		jsonError(w, "Missing clientId, clientSecret, or deviceCode", http.StatusBadRequest)
		return
	}

	upstream, err := h.client.Forward(r.Context(), "/oauth/device/token", "", "", map[string]string{
		"client_id":     req.ClientID,
		"client_secret": req.ClientSecret,
		"code":          req.DeviceCode,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeUpstream(w, upstream)
}

// Sync forwards a sync payload to one of the two allowed sync endpoints.
// POST /api/trakt/sync
func (h *RelayHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID    string          `json:"clientId"`
		AccessToken string          `json:"accessToken"`
		Target      string          `json:"target"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || req.AccessToken == "" || req.Target == "" {
		jsonError(w, "Missing clientId, accessToken, or target", http.StatusBadRequest)
		return
	}
	if !trakt.AllowedSyncTarget(req.Target) {
		jsonError(w, "Unsupported Trakt endpoint", http.StatusBadRequest)
		return
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	upstream, err := h.client.Forward(r.Context(), req.Target, req.ClientID, req.AccessToken, payload)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeUpstream(w, upstream)
}

// writeUpstream re-emits an upstream Trakt response: a 204 has no body, JSON
// bodies pass through untouched, anything else is wrapped as {"message"}.
func writeUpstream(w http.ResponseWriter, upstream *trakt.UpstreamResponse) {
	if upstream.Status == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(upstream.Status)
	if upstream.JSON {
		w.Write(upstream.Body)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"message": string(upstream.Body)})
}
