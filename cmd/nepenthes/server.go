package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/settings"
	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/CTAG07/Nepenthes/pkg/view"
	"github.com/CTAG07/Nepenthes/pkg/watch"
	"github.com/klauspost/compress/gzhttp"
)

// Server wires the settings store, the viewer, the host site and the admin
// API together.
type Server struct {
	cm       *ConfigManager
	config   Config
	db       *sql.DB
	logger   *slog.Logger
	siteRoot string

	store   *settings.Store
	viewer  atomic.Pointer[view.Viewer]
	// apiRoots were added through the API and survive settings changes.
	apiRootsMu sync.Mutex
	apiRoots   []string
	wrapper atomic.Bool
	site    *Site

	watchMu   sync.Mutex
	watcher   *watch.Watcher
	watchStop chan struct{}

	authAPI     *AuthAPI
	settingsAPI *SettingsAPI
	viewAPI     *ViewAPI
	statsAPI    *StatsAPI
	serverAPI   *ServerAPI

	siteHandler http.Handler
	apiHandler  http.Handler
}

// NewServer builds a server from cfg. cm backs the server control endpoints.
func NewServer(cm *ConfigManager, cfg Config, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	siteRoot, err := filepath.Abs(cfg.Server.SiteRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve site root: %w", err)
	}

	s := &Server{
		cm:       cm,
		config:   cfg,
		db:       db,
		logger:   logger,
		siteRoot: siteRoot,
	}

	themeDir, err := filepath.Abs(cfg.Server.ThemeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve theme directory: %w", err)
	}
	s.store = settings.NewStore(db, logger, settings.Defaults(themeDir), settings.Sanitizer{Base: siteRoot, Logger: logger})

	opts, err := s.store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	s.applyOptions(opts)

	s.statsAPI = NewStatsAPI(db, logger)
	s.site, err = NewSite(logger, &cfg, s.Viewer, s.wrapper.Load, s.statsAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}

	s.authAPI = NewAuthAPI(db, logger)
	s.settingsAPI = NewSettingsAPI(s.store, s.applyOptions, cfg.Server.DataDir, logger)
	s.viewAPI = NewViewAPI(s.Viewer, s.rootsAdded, logger)
	s.serverAPI = NewServerAPI(cm, actionChan, logger)

	apiMux := http.NewServeMux()
	s.authAPI.RegisterRoutes(apiMux)
	s.settingsAPI.RegisterRoutes(apiMux)
	s.viewAPI.RegisterRoutes(apiMux)
	s.statsAPI.RegisterRoutes(apiMux)
	s.serverAPI.RegisterRoutes(apiMux)

	// Every api function must pass through authentication first.
	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /api/health", s.handleHealth)
	rootMux.Handle("/api/", s.authAPI.Authenticate(apiMux))
	s.apiHandler = rootMux

	s.siteHandler = s.site
	if cfg.Server.EnableGzip {
		s.siteHandler = gzhttp.GzipHandler(s.site)
	}
	return s, nil
}

// Viewer returns the viewer for the current settings.
func (s *Server) Viewer() *view.Viewer {
	return s.viewer.Load()
}

// applyOptions builds a fresh viewer for opts and swaps it in. Roots added
// through the API are searched after the configured template paths.
func (s *Server) applyOptions(opts settings.Options) {
	tmplConfig := *s.config.Templates
	tmplConfig.UseCache = opts.UseCache
	tmplConfig.EnginePath = ""
	if opts.EnginePath != "" {
		tmplConfig.EnginePath = s.absolute(opts.EnginePath)
	}

	factory := func(roots []string) (view.Renderer, error) {
		e, err := templating.New(s.logger, &tmplConfig, roots, nil)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	roots := append([]string{}, opts.TemplatePaths...)
	s.apiRootsMu.Lock()
	roots = append(roots, s.apiRoots...)
	s.apiRootsMu.Unlock()
	v := view.New(s.logger, s.config.View, nil, s.siteRoot, roots, factory)

	s.viewer.Store(v)
	s.wrapper.Store(opts.TemplateWrapper)
	s.logger.Info("View settings applied", "roots", v.Roots(), "wrapper", opts.TemplateWrapper, "cache", opts.UseCache, "engine_available", v.Available())

	if s.config.Server.WatchTemplates {
		s.restartWatcher(v.Roots())
	}
}

func (s *Server) absolute(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.siteRoot, p)
}

// restartWatcher replaces the template watcher with one over roots. Each
// settled change flushes the engine caches.
func (s *Server) restartWatcher(roots []string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatcherLocked()

	cfg := watch.DefaultConfig(roots...)
	cfg.Extension = s.config.Templates.Extension
	if s.config.Server.WatchDebounceMs > 0 {
		cfg.DebounceDur = time.Duration(s.config.Server.WatchDebounceMs) * time.Millisecond
	}
	w, err := watch.New(s.logger, cfg)
	if err != nil {
		s.logger.Warn("Template watcher unavailable", "error", err)
		return
	}
	onChange, err := w.Start()
	if err != nil {
		_ = w.Stop()
		s.logger.Warn("Failed to start template watcher", "error", err)
		return
	}

	stop := make(chan struct{})
	s.watcher, s.watchStop = w, stop
	go func() {
		for {
			select {
			case <-onChange:
				s.logger.Info("Template files changed, clearing caches")
				if v := s.Viewer(); v != nil {
					v.ClearCache()
				}
			case <-stop:
				return
			}
		}
	}()
}

// watchRoots adds roots to the running watcher.
// rootsAdded records roots added through the API and starts watching them.
func (s *Server) rootsAdded(roots ...string) {
	s.apiRootsMu.Lock()
	for _, r := range roots {
		if abs := s.absolute(r); !contains(s.apiRoots, abs) {
			s.apiRoots = append(s.apiRoots, abs)
		}
	}
	s.apiRootsMu.Unlock()
	s.watchRoots(roots...)
}

func (s *Server) watchRoots(roots ...string) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher == nil {
		return
	}
	for _, r := range roots {
		if err := s.watcher.AddRoot(s.absolute(r)); err != nil {
			s.logger.Warn("Failed to watch template root", "root", r, "error", err)
		}
	}
}

func (s *Server) stopWatcherLocked() {
	if s.watcher == nil {
		return
	}
	close(s.watchStop)
	if err := s.watcher.Stop(); err != nil {
		s.logger.Warn("Failed to stop template watcher", "error", err)
	}
	s.watcher, s.watchStop = nil, nil
}

// Close releases the watcher.
func (s *Server) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatcherLocked()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if v := s.Viewer(); v == nil || !v.Available() {
		status = "degraded"
	}
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "degraded"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": status, "version": Version})
}
