package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/CTAG07/Nepenthes/pkg/settings"
)

// SettingsAPI reads and updates the stored view options.
type SettingsAPI struct {
	store   *settings.Store
	apply   func(settings.Options)
	dataDir string
	logger  *slog.Logger
}

// NewSettingsAPI creates a SettingsAPI. apply is called with every
// successfully saved set of options.
func NewSettingsAPI(store *settings.Store, apply func(settings.Options), dataDir string, logger *slog.Logger) *SettingsAPI {
	return &SettingsAPI{store: store, apply: apply, dataDir: dataDir, logger: logger}
}

// RegisterRoutes sets up the routing for all /api/settings endpoints.
func (a *SettingsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/settings", requireScope(scopeSettingsRead, a.handleGet))
	mux.HandleFunc("PUT /api/settings", requireScope(scopeSettingsWrite, a.handlePut))
	mux.HandleFunc("POST /api/settings/export", requireScope(scopeSettingsRead, a.handleExport))
}

func (a *SettingsAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	opts, err := a.store.Current(r.Context())
	if err != nil {
		a.logger.Error("Failed to load settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load settings: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, opts)
}

// handlePut merges the body over the current options, so a partial update
// leaves the other fields unchanged.
func (a *SettingsAPI) handlePut(w http.ResponseWriter, r *http.Request) {
	opts, err := a.store.Current(r.Context())
	if err != nil {
		a.logger.Error("Failed to load settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load settings: %v", err))
		return
	}
	if err = json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	saved, err := a.store.Save(r.Context(), opts)
	if err != nil {
		a.logger.Error("Failed to save settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save settings: %v", err))
		return
	}
	a.apply(saved)
	a.logger.Info("Settings updated via API")
	respondWithJSON(w, http.StatusOK, saved)
}

func (a *SettingsAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(a.dataDir, "options.json")
	if err := a.store.Export(r.Context(), path); err != nil {
		a.logger.Error("Failed to export settings", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to export settings: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"path": path})
}
