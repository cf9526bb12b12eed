package templating

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Engine renders templates that live under an ordered list of root
// directories. A template is addressed by its path relative to a root, in
// slash form ("page-about.html", "blog/post.html"), and is loaded from the
// first root that contains it. All methods are concurrent-safe.
type Engine struct {
	logger   *slog.Logger
	config   *TemplateConfig
	roots    []string
	funcMap  template.FuncMap
	partials *template.Template
	cache    *templateCache
	mu       sync.RWMutex
}

// New creates an Engine over roots. extra is merged into the function map
// and may override built-in functions. If config.EnginePath is set, the
// partials found there are parsed once and shared by every template; when
// that directory cannot be read New returns an error wrapping
// ErrEngineUnavailable.
func New(logger *slog.Logger, config *TemplateConfig, roots []string, extra template.FuncMap) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		logger: logger,
		config: config,
		roots:  append([]string(nil), roots...),
	}
	e.funcMap = e.makeFuncMap()
	for name, fn := range extra {
		e.funcMap[name] = fn
	}

	if config.UseCache {
		e.cache = newTemplateCache(logger, config.cacheExpiration())
	}

	partials, err := e.loadPartials()
	if err != nil {
		return nil, err
	}
	e.partials = partials

	logger.Info("Template engine initialized", "roots", len(e.roots), "cache", config.UseCache)
	return e, nil
}

// loadPartials parses the shared partial files of the engine runtime.
func (e *Engine) loadPartials() (*template.Template, error) {
	base := template.New("").Funcs(e.funcMap)
	if e.config.EnginePath == "" {
		return base, nil
	}

	info, err := os.Stat(e.config.EnginePath)
	if err != nil {
		return nil, fmt.Errorf("%w: could not load %s: %v", ErrEngineUnavailable, e.config.EnginePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrEngineUnavailable, e.config.EnginePath)
	}

	pattern := filepath.Join(e.config.EnginePath, e.config.partialPattern())
	e.logger.Info("Loading partial files...", "pattern", pattern)
	parsed, err := base.ParseGlob(pattern)
	if err != nil {
		if strings.Contains(err.Error(), "pattern matches no files") {
			e.logger.Warn("No partial files found matching pattern", "pattern", pattern)
			return base, nil
		}
		e.logger.Error("failed to parse partial files", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	e.logger.Info("Loaded partial files", "count", len(parsed.Templates())-1) // Subtract one for the root template
	return parsed, nil
}

// Roots returns the engine's roots in priority order.
func (e *Engine) Roots() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.roots))
	copy(out, e.roots)
	return out
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() TemplateConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.config
}

// Render loads the template called name and executes it with data.
func (e *Engine) Render(w io.Writer, name string, data any) error {
	t, err := e.load(name)
	if err != nil {
		return err
	}
	return t.ExecuteTemplate(w, name, data)
}

// Exists reports whether name can be loaded from any root.
func (e *Engine) Exists(name string) bool {
	_, _, err := e.locate(name)
	return err == nil
}

// ClearCache drops every parsed template. It is a no-op when caching is off.
func (e *Engine) ClearCache() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cache != nil {
		e.cache.flush()
		e.logger.Debug("Template cache cleared")
	}
}

// CachedCount returns the number of parsed templates currently cached.
func (e *Engine) CachedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cache == nil {
		return 0
	}
	return e.cache.len()
}

// List returns every template name visible through the roots, sorted. A
// name present in several roots is listed once. Partials are excluded.
func (e *Engine) List() ([]string, error) {
	roots := e.Roots()
	partialExt := e.config.PartialSuffix + e.config.Extension
	seen := make(map[string]struct{})

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			name := d.Name()
			if !strings.HasSuffix(name, e.config.Extension) || strings.HasSuffix(name, partialExt) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			seen[filepath.ToSlash(rel)] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list templates in %s: %w", root, err)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ExecuteString parses and executes a raw template string with the engine's
// functions and partials. Useful for previews without saving a file.
func (e *Engine) ExecuteString(w io.Writer, content string, data any) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// Clone the clean partial set so the string never leaks into it.
	tempSet, err := e.partials.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone partials for string execution: %w", err)
	}

	t, err := tempSet.Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}
	return t.Execute(w, data)
}

// locate finds the file backing name.
func (e *Engine) locate(name string) (string, os.FileInfo, error) {
	e.mu.RLock()
	roots := e.roots
	e.mu.RUnlock()

	if !validName(name) {
		return "", nil, &TemplateNotFoundError{Name: name, Roots: roots}
	}
	for _, root := range roots {
		path := filepath.Join(root, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, info, nil
		}
	}
	return "", nil, &TemplateNotFoundError{Name: name, Roots: roots}
}

// load returns the parsed template for name, from the cache when it is
// still fresh.
func (e *Engine) load(name string) (*template.Template, error) {
	path, info, err := e.locate(name)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	cache := e.cache
	partials := e.partials
	e.mu.RUnlock()

	if cache != nil {
		if t, ok := cache.get(name, path, info.ModTime()); ok {
			return t, nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	set, err := partials.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone partials: %w", err)
	}
	t, err := set.New(name).Parse(string(content))
	if err != nil {
		return nil, &ParseError{Name: name, Path: path, Cause: err}
	}

	if cache != nil {
		cache.put(name, path, info.ModTime(), t)
	}
	e.logger.Debug("Parsed template", "name", name, "path", path)
	return t, nil
}

// validName rejects names that could escape a root.
func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
