package handlers

import (
	"encoding/json"
	"log"
	"mime/multipart"
	"net/http"

	"betatrakt/config"
	"betatrakt/models"
	"betatrakt/services/authflow"
	"betatrakt/services/betaseries"
	"betatrakt/services/csvimport"
	"betatrakt/services/migration"
	"betatrakt/services/trakt"
)

// maxUploadBytes bounds CSV uploads. BetaSeries exports run a few hundred
// kilobytes at most.
const maxUploadBytes = 8 << 20

// MigrateHandler runs migrations and parses uploaded CSV exports.
type MigrateHandler struct {
	configManager *config.Manager
	flow          *authflow.Service
}

// NewMigrateHandler creates a migrate handler.
func NewMigrateHandler(configManager *config.Manager, flow *authflow.Service) *MigrateHandler {
	return &MigrateHandler{configManager: configManager, flow: flow}
}

// MigrateRequest is the full input for one migration run. Credentials and
// client id fall back to the persisted settings; the access token falls back
// to the tokens granted by the in-process device flow.
type MigrateRequest struct {
	APIKey      string            `json:"apiKey,omitempty"`
	Token       string            `json:"token,omitempty"`
	ClientID    string            `json:"clientId,omitempty"`
	AccessToken string            `json:"accessToken,omitempty"`
	Shows       []models.ShowRow  `json:"shows"`
	Movies      []models.MovieRow `json:"movies"`
}

// Run executes a migration and returns the aggregated result.
// POST /api/migrate
func (h *MigrateHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := h.configManager.Load()
	if err != nil {
		jsonError(w, "Failed to load settings: "+err.Error(), http.StatusInternalServerError)
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = settings.BetaSeries.APIKey
	}
	token := req.Token
	if token == "" {
		token = settings.BetaSeries.Token
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = settings.Trakt.ClientID
	}
	accessToken := req.AccessToken
	if accessToken == "" {
		if tokens, ok := h.flow.Tokens(); ok {
			accessToken = tokens.AccessToken
		}
	}

	if apiKey == "" {
		jsonError(w, "BetaSeries API key is required", http.StatusBadRequest)
		return
	}
	if clientID == "" {
		jsonError(w, "Trakt client id is required", http.StatusBadRequest)
		return
	}
	if accessToken == "" {
		jsonError(w, "Authorize Trakt before migrating", http.StatusBadRequest)
		return
	}

	resolver, err := betaseries.NewClient(betaseries.Credentials{APIKey: apiKey, Token: token})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	svc := migration.NewService(resolver, trakt.NewClient(clientID, ""))
	result, err := svc.Run(r.Context(), migration.Input{
		Shows:       req.Shows,
		Movies:      req.Movies,
		AccessToken: accessToken,
		OnProgress: func(p models.MigrationProgress) {
			log.Printf("migrating %d/%d: %s", p.Completed, p.Total, p.CurrentLabel)
		},
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ImportShows parses an uploaded BetaSeries show export.
// POST /api/import/shows
func (h *MigrateHandler) ImportShows(w http.ResponseWriter, r *http.Request) {
	file, err := uploadedFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	rows, err := csvimport.ParseShows(file)
	if err != nil {
		jsonError(w, "Failed to parse show export: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// ImportMovies parses an uploaded BetaSeries movie export.
// POST /api/import/movies
func (h *MigrateHandler) ImportMovies(w http.ResponseWriter, r *http.Request) {
	file, err := uploadedFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	rows, err := csvimport.ParseMovies(file)
	if err != nil {
		jsonError(w, "Failed to parse movie export: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// uploadedFile extracts the "file" part of a multipart upload. The error
// response is already written on failure.
func uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, "Invalid upload: "+err.Error(), http.StatusBadRequest)
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "Missing file upload", http.StatusBadRequest)
		return nil, err
	}
	return file, nil
}
