package api

import (
	"net/http"

	"betatrakt/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for API routes. The frontend may be served
// from a different origin during development, so every response carries the
// permissive headers and preflights short-circuit with 204.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	settingsHandler *handlers.SettingsHandler,
	authHandler *handlers.AuthHandler,
	relayHandler *handlers.RelayHandler,
	migrateHandler *handlers.MigrateHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Settings
	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings", handleOptions).Methods(http.MethodOptions)

	// Device authorization flow
	api.HandleFunc("/auth/start", authHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/auth/start", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/auth/status", authHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/auth/status", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/auth/reset", authHandler.Reset).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset", handleOptions).Methods(http.MethodOptions)

	// Trakt relay
	api.HandleFunc("/trakt/device-code", relayHandler.DeviceCode).Methods(http.MethodPost)
	api.HandleFunc("/trakt/device-code", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/trakt/device-token", relayHandler.DeviceToken).Methods(http.MethodPost)
	api.HandleFunc("/trakt/device-token", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/trakt/sync", relayHandler.Sync).Methods(http.MethodPost)
	api.HandleFunc("/trakt/sync", handleOptions).Methods(http.MethodOptions)

	// CSV import and migration
	api.HandleFunc("/import/shows", migrateHandler.ImportShows).Methods(http.MethodPost)
	api.HandleFunc("/import/shows", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/import/movies", migrateHandler.ImportMovies).Methods(http.MethodPost)
	api.HandleFunc("/import/movies", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/migrate", migrateHandler.Run).Methods(http.MethodPost)
	api.HandleFunc("/migrate", handleOptions).Methods(http.MethodOptions)
}
