// Package view renders logical view identifiers such as "page-about" through
// a template engine. Identifiers are expanded into a cascade of candidate
// names, searched root by root over a mutable search path, and the first
// match is handed to the engine under its root-relative name.
package view

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/CTAG07/Nepenthes/pkg/cascade"
	"github.com/CTAG07/Nepenthes/pkg/templating"
)

// Renderer executes a template by its root-relative name.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// EngineFactory builds a Renderer over roots, in priority order.
type EngineFactory func(roots []string) (Renderer, error)

// Request describes a single render.
type Request struct {
	// Template is the identifier to render. When empty, Current is used.
	Template cascade.Identifier
	// Current is the host's own template selection for the request.
	Current cascade.Identifier
	// Data is passed to the template unchanged.
	Data any
	// TemplatePaths are added to the search path before resolving.
	TemplatePaths []string
}

// Resolution is the outcome of resolving an identifier.
type Resolution struct {
	Identifier cascade.Identifier `json:"identifier"`
	Candidates []string           `json:"candidates"`
	Roots      []string           `json:"roots"`
	// Path and Root are empty when nothing matched.
	Path string `json:"path,omitempty"`
	Root string `json:"root,omitempty"`
	// Name is the key handed to the engine.
	Name string `json:"name"`
	// Found is false when Name is a pass-through of the raw identifier.
	Found bool `json:"found"`
}

// Viewer owns a search path and the engine built over it.
type Viewer struct {
	logger   *slog.Logger
	config   *Config
	fs       cascade.Filesystem
	resolver *cascade.Resolver
	factory  EngineFactory

	mu        sync.RWMutex
	paths     *cascade.SearchPath
	engine    Renderer
	engineErr error
	builds    int
	notices   []Notice
}

// New returns a Viewer over roots. Relative roots are resolved against base.
// Missing root directories are created when possible. If the engine cannot
// be built the failure is recorded as a notice and the Viewer stays inert
// until a later rebuild succeeds; New itself never fails.
func New(logger *slog.Logger, config *Config, fsys cascade.Filesystem, base string, roots []string, factory EngineFactory) *Viewer {
	if config == nil {
		config = DefaultConfig()
	}
	if fsys == nil {
		fsys = cascade.OSFilesystem{}
	}
	v := &Viewer{
		logger:   logger,
		config:   config,
		fs:       fsys,
		resolver: cascade.NewResolver(fsys),
		factory:  factory,
		paths:    cascade.NewSearchPath(base),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.addLocked(roots)
	v.rebuildLocked()
	return v
}

// AddRoots appends roots to the search path and reports whether any of them
// was new. A new root rebuilds the engine before AddRoots returns; known
// roots change nothing.
func (v *Viewer) AddRoots(roots ...string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.addLocked(roots) {
		return false
	}
	v.rebuildLocked()
	return true
}

func (v *Viewer) addLocked(roots []string) bool {
	fresh := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs := v.paths.Absolute(r); abs != "" && !v.paths.Contains(abs) {
			fresh = append(fresh, abs)
		}
	}
	if len(fresh) == 0 {
		return false
	}

	if err := cascade.EnsureDirs(v.fs, v.logger, fresh...); err != nil {
		var dirErr *cascade.DirCreateError
		for _, e := range unwrapAll(err) {
			if errors.As(e, &dirErr) {
				v.notice(fmt.Sprintf("Could not create template directory %s", dirErr.Path), dirErr.Err)
			}
		}
	}
	return v.paths.Add(fresh...)
}

// Reload rebuilds the engine over the current roots.
func (v *Viewer) Reload() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rebuildLocked()
	return v.engineErr
}

func (v *Viewer) rebuildLocked() {
	if v.factory == nil {
		v.engine, v.engineErr = nil, templating.ErrEngineUnavailable
		v.notice("No template engine configured", nil)
		return
	}
	engine, err := v.factory(v.paths.Roots())
	v.builds++
	if err != nil {
		v.engine, v.engineErr = nil, err
		if errors.Is(err, templating.ErrEngineUnavailable) {
			v.notice("Template engine runtime could not be loaded, views are disabled", err)
		} else {
			v.notice("Template engine could not be created", err)
		}
		return
	}
	v.engine, v.engineErr = engine, nil
	v.logger.Debug("Template engine built", "roots", v.paths.Len(), "generation", v.paths.Generation())
}

// Resolve expands id into candidates and searches them path-major over the
// current roots. When nothing matches and pass-through is enabled, the
// returned Resolution names the raw identifier and Found is false; otherwise
// the *cascade.NotFoundError is returned.
func (v *Viewer) Resolve(id cascade.Identifier) (Resolution, error) {
	v.mu.RLock()
	roots := v.paths.Roots()
	engineErr := v.engineErr
	v.mu.RUnlock()

	if engineErr != nil {
		return Resolution{}, engineErr
	}
	return v.resolve(id, roots)
}

func (v *Viewer) resolve(id cascade.Identifier, roots []string) (Resolution, error) {
	candidates, err := cascade.Candidates(id, v.config.Extension, v.config.Sentinel)
	if err != nil {
		return Resolution{}, err
	}
	fallback := v.config.fallbackName()

	res := Resolution{Identifier: id, Candidates: cascade.WithFallback(candidates, fallback), Roots: roots}
	found, err := v.resolver.Resolve(cascade.PathMajor, candidates, roots)
	if errors.Is(err, cascade.ErrNotFound) && fallback != "" {
		// The generic name is only tried once the cascade is exhausted in
		// every root.
		found, err = v.resolver.Resolve(cascade.PathMajor, []string{fallback}, roots)
	}
	if errors.Is(err, cascade.ErrNotFound) {
		err = &cascade.NotFoundError{Candidates: res.Candidates, Roots: roots}
	}
	if err != nil {
		if !errors.Is(err, cascade.ErrNotFound) || !v.config.PassThrough {
			return res, err
		}
		res.Name = string(id) + v.config.Extension
		v.logger.Debug("No view candidate found, passing identifier through", "identifier", id, "name", res.Name)
		return res, nil
	}

	name, err := cascade.Reduce(found, roots)
	if err != nil {
		return res, err
	}
	res.Path, res.Root, res.Name, res.Found = found.Path, found.Root, name, true
	return res, nil
}

// Render resolves the request's identifier and executes the result.
func (v *Viewer) Render(w io.Writer, req Request) error {
	if len(req.TemplatePaths) > 0 {
		v.AddRoots(req.TemplatePaths...)
	}

	id := req.Template
	if id == "" {
		id = req.Current
	}

	v.mu.RLock()
	roots := v.paths.Roots()
	engine, engineErr := v.engine, v.engineErr
	v.mu.RUnlock()

	if engineErr != nil {
		return engineErr
	}
	res, err := v.resolve(id, roots)
	if err != nil {
		return err
	}
	if err = engine.Render(w, res.Name, req.Data); err != nil {
		return fmt.Errorf("failed to render view %q: %w", id, err)
	}
	return nil
}

// RenderString is Render into a string.
func (v *Viewer) RenderString(req Request) (string, error) {
	var buf bytes.Buffer
	if err := v.Render(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ClearCache drops the engine's parsed-template cache, if it keeps one.
func (v *Viewer) ClearCache() {
	v.mu.RLock()
	engine := v.engine
	v.mu.RUnlock()
	if c, ok := engine.(interface{ ClearCache() }); ok {
		c.ClearCache()
	}
}

// Roots returns the search path in priority order.
func (v *Viewer) Roots() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.paths.Roots()
}

// Generation returns the search path generation.
func (v *Viewer) Generation() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.paths.Generation()
}

// Builds returns how many times the engine has been built.
func (v *Viewer) Builds() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.builds
}

// Available reports whether the Viewer has a working engine.
func (v *Viewer) Available() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engineErr == nil
}

// Engine returns the current renderer, or nil when inert.
func (v *Viewer) Engine() Renderer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.engine
}

// unwrapAll flattens a joined error.
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
