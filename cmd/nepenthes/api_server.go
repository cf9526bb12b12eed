package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// ServerAPI holds the dependencies for the server control handlers.
type ServerAPI struct {
	cm         *ConfigManager
	actionChan chan string
	logger     *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(cm *ConfigManager, actionChan chan string, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{cm: cm, actionChan: actionChan, logger: logger}
}

// RegisterRoutes sets up the routing for all /api/server endpoints.
func (a *ServerAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/server/config", requireScope(scopeServerConfig, a.handleGetConfig))
	mux.HandleFunc("PUT /api/server/config", requireScope(scopeServerConfig, a.handlePutConfig))
	mux.HandleFunc("GET /api/server/version", requireScope(scopeStatsRead, a.handleVersion))
	mux.HandleFunc("POST /api/server/shutdown", requireScope(scopeServerControl, a.handleAction(actionShutdown)))
	mux.HandleFunc("POST /api/server/restart", requireScope(scopeServerControl, a.handleAction(actionRestart)))
}

func (a *ServerAPI) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// handlePutConfig saves a new configuration file. It takes effect on the
// next restart.
func (a *ServerAPI) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	newConfig := a.cm.Get().clone()
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := a.cm.Update(newConfig); err != nil {
		a.logger.Error("Failed to save configuration", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save configuration: %v", err))
		return
	}
	a.logger.Info("Configuration updated via API, restart to apply")
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// handleVersion returns the application's build information.
func (a *ServerAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

// handleAction queues a shutdown or restart of the server loop.
func (a *ServerAPI) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.logger.Warn("Server "+action+" initiated via API")
		respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Server " + action + " in progress..."})

		go func() {
			a.actionChan <- action
		}()
	}
}
