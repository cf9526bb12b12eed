package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/CTAG07/Nepenthes/pkg/cascade"
	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/CTAG07/Nepenthes/pkg/view"
)

// ViewAPI exposes the viewer's search path, resolution and rendering.
type ViewAPI struct {
	viewer    func() *view.Viewer
	onAddRoot func(roots ...string)
	logger    *slog.Logger
}

// NewViewAPI creates a ViewAPI. onAddRoot is called with roots that were
// newly added to the search path.
func NewViewAPI(viewer func() *view.Viewer, onAddRoot func(roots ...string), logger *slog.Logger) *ViewAPI {
	return &ViewAPI{viewer: viewer, onAddRoot: onAddRoot, logger: logger}
}

// RootsInfo describes the current search path.
type RootsInfo struct {
	Roots      []string `json:"roots"`
	Generation uint64   `json:"generation"`
	Builds     int      `json:"engine_builds"`
	Available  bool     `json:"engine_available"`
}

// AddRootsRequest is the expected JSON body for adding roots.
type AddRootsRequest struct {
	Paths []string `json:"paths"`
}

// RegisterRoutes sets up the routing for the view endpoints.
func (a *ViewAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/roots", requireScope(scopeViewsRead, a.handleRoots))
	mux.HandleFunc("POST /api/roots", requireScope(scopeViewsWrite, a.handleAddRoots))
	mux.HandleFunc("GET /api/resolve", requireScope(scopeViewsRead, a.handleResolve))
	mux.HandleFunc("POST /api/render", requireScope(scopeViewsRead, a.handleRender))
	mux.HandleFunc("GET /api/templates", requireScope(scopeViewsRead, a.handleTemplates))
	mux.HandleFunc("POST /api/templates/preview", requireScope(scopeViewsRead, a.handlePreview))
	mux.HandleFunc("POST /api/cache/clear", requireScope(scopeViewsWrite, a.handleClearCache))
	mux.HandleFunc("GET /api/notices", requireScope(scopeViewsRead, a.handleNotices))
	mux.HandleFunc("DELETE /api/notices", requireScope(scopeViewsWrite, a.handleClearNotices))
}

func (a *ViewAPI) rootsInfo(v *view.Viewer) RootsInfo {
	return RootsInfo{
		Roots:      v.Roots(),
		Generation: v.Generation(),
		Builds:     v.Builds(),
		Available:  v.Available(),
	}
}

func (a *ViewAPI) handleRoots(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, a.rootsInfo(a.viewer()))
}

func (a *ViewAPI) handleAddRoots(w http.ResponseWriter, r *http.Request) {
	var req AddRootsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 {
		respondWithError(w, http.StatusBadRequest, "Body must be {\"paths\": [...]} with at least one path")
		return
	}
	v := a.viewer()
	if v.AddRoots(req.Paths...) {
		a.logger.Info("Template roots added via API", "paths", req.Paths)
		if a.onAddRoot != nil {
			a.onAddRoot(req.Paths...)
		}
	}
	respondWithJSON(w, http.StatusOK, a.rootsInfo(v))
}

func (a *ViewAPI) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'id' is required")
		return
	}
	res, err := a.viewer().Resolve(cascade.Identifier(id))
	if err != nil {
		a.respondResolveError(w, err, res)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (a *ViewAPI) respondResolveError(w http.ResponseWriter, err error, res view.Resolution) {
	switch {
	case errors.Is(err, cascade.ErrNotFound):
		respondWithJSON(w, http.StatusNotFound, map[string]any{"error": err.Error(), "resolution": res})
	case errors.Is(err, templating.ErrEngineUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, cascade.ErrEmptyIdentifier), errors.Is(err, cascade.ErrInvalidIdentifier):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleRender renders ?id= with the JSON request body as data.
func (a *ViewAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	var data any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	var buf bytes.Buffer
	err := a.viewer().Render(&buf, view.Request{Template: cascade.Identifier(r.URL.Query().Get("id")), Data: data})
	if err != nil {
		var notFound *templating.TemplateNotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		a.respondResolveError(w, err, view.Resolution{})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleTemplates lists every template visible through the search path.
func (a *ViewAPI) handleTemplates(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.viewer().Engine().(*templating.Engine)
	if !ok {
		respondWithError(w, http.StatusServiceUnavailable, templating.ErrEngineUnavailable.Error())
		return
	}
	names, err := engine.List()
	if err != nil {
		a.logger.Error("Failed to list templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list templates: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, names)
}

// handlePreview executes the request body as a template without saving it.
func (a *ViewAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.viewer().Engine().(*templating.Engine)
	if !ok {
		respondWithError(w, http.StatusServiceUnavailable, templating.ErrEngineUnavailable.Error())
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}

	var buf bytes.Buffer
	if err = engine.ExecuteString(&buf, string(body), nil); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Template execution failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *ViewAPI) handleClearCache(w http.ResponseWriter, r *http.Request) {
	a.viewer().ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (a *ViewAPI) handleNotices(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, a.viewer().Notices())
}

func (a *ViewAPI) handleClearNotices(w http.ResponseWriter, r *http.Request) {
	a.viewer().ClearNotices()
	w.WriteHeader(http.StatusNoContent)
}
