package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/cascade"
	"github.com/CTAG07/Nepenthes/pkg/content"
	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/CTAG07/Nepenthes/pkg/view"
	"github.com/google/uuid"
)

// PageData is the data passed to host theme templates.
type PageData struct {
	Identifier cascade.Identifier
	// Template is the selected host template's base name without extension.
	Template string
	// TemplatePath is the selected host template file.
	TemplatePath string
	// Layout is the layout file wrapping the template, if any.
	Layout    string
	Path      string
	RequestID string
	// Content holds the rendered template when a layout wraps it.
	Content template.HTML
	// Post is the page record stored for Path, nil when there is none.
	Post *content.Post
}

// selection is the host template chosen for a request.
type selection struct {
	cascade.Resolved
	Name       string
	Candidates []string
}

// Site serves pages from the host theme. Each request path is mapped to an
// identifier, the most specific theme template for it is selected, an
// optional layout wraps it, and theme templates render views through the
// "view" function.
type Site struct {
	logger   *slog.Logger
	ext      string
	sentinel string
	roots    []string
	resolver *cascade.Resolver
	layouts  *cascade.LayoutResolver
	engine   *templating.Engine
	viewer   func() *view.Viewer
	wrap     func() bool
	stats    *StatsAPI
	posts    *content.Store
}

// NewSite builds the host dispatcher over the theme roots in cfg. viewer and
// wrap are read on every request so settings changes apply immediately.
func NewSite(logger *slog.Logger, cfg *Config, viewer func() *view.Viewer, wrap func() bool, stats *StatsAPI) (*Site, error) {
	roots := cfg.ThemeRoots()
	s := &Site{
		logger:   logger,
		ext:      cfg.Templates.Extension,
		sentinel: cfg.View.Sentinel,
		roots:    roots,
		resolver: cascade.NewResolver(nil),
		viewer:   viewer,
		wrap:     wrap,
		stats:    stats,
	}

	var override, base string
	switch len(roots) {
	case 1:
		base = roots[0]
	case 2:
		override, base = roots[0], roots[1]
	}
	s.layouts = cascade.NewLayoutResolver(nil, s.sentinel, override, base)

	if cfg.Server.ContentDir != "" {
		dir, err := filepath.Abs(cfg.Server.ContentDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve content directory: %w", err)
		}
		s.posts = content.NewStore(dir, logger)
	}

	// The theme engine has no shared runtime of its own.
	themeConfig := *cfg.Templates
	themeConfig.EnginePath = ""
	themeConfig.UseCache = false
	engine, err := templating.New(logger, &themeConfig, roots, template.FuncMap{"view": s.renderView})
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// identifierForPath maps a request path to a host template identifier:
// "/" is "index", "/about" is "page-about", "/blog/post" is "page-blog-post".
func identifierForPath(p string, ext string) cascade.Identifier {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if ext != "" {
		clean = strings.TrimSuffix(clean, ext)
	}
	if clean == "" || clean == cascade.DefaultSentinel {
		return cascade.DefaultSentinel
	}
	segments := strings.FieldsFunc(clean, func(r rune) bool { return r == '/' })
	return cascade.Identifier("page-" + strings.Join(segments, "-"))
}

// selectTemplate picks the host template for id. The theme lookup prefers
// the most specific name over root priority.
func (s *Site) selectTemplate(id cascade.Identifier) (selection, error) {
	candidates, err := cascade.Candidates(id, s.ext, s.sentinel)
	if err != nil {
		return selection{}, err
	}
	candidates = cascade.WithFallback(candidates, cascade.DefaultSentinel+s.ext)

	res, err := s.resolver.Resolve(cascade.CandidateMajor, candidates, s.roots)
	if err != nil {
		return selection{Candidates: candidates}, err
	}
	name, err := cascade.Reduce(res, s.roots)
	if err != nil {
		return selection{Candidates: candidates}, err
	}
	return selection{Resolved: res, Name: name, Candidates: candidates}, nil
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	w.Header().Set("X-Request-Id", reqID)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	id := identifierForPath(r.URL.Path, s.ext)
	sel, err := s.selectTemplate(id)
	if err != nil {
		s.logger.Debug("No theme template for request", "path", r.URL.Path, "identifier", id, "request_id", reqID, "error", err)
		http.NotFound(w, r)
		return
	}

	data := &PageData{
		Identifier:   id,
		Template:     strings.TrimSuffix(path.Base(sel.Name), s.ext),
		TemplatePath: sel.Path,
		Path:         r.URL.Path,
		RequestID:    reqID,
	}
	if data.Post, err = s.post(r.URL.Path); err != nil {
		s.logger.Error("Failed to load page record", "path", r.URL.Path, "request_id", reqID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = s.render(&buf, sel, data)
	s.record(r, id, sel.Name, err)
	if err != nil {
		var notFound *templating.TemplateNotFoundError
		if errors.As(err, &notFound) {
			s.logger.Warn("Template missing while rendering", "identifier", id, "template", notFound.Name, "request_id", reqID)
			http.NotFound(w, r)
			return
		}
		s.logger.Error("Failed to render page", "identifier", id, "template", sel.Name, "request_id", reqID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Serving page", "path", r.URL.Path, "identifier", id, "template", sel.Name, "layout", data.Layout, "request_id", reqID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// post loads the page record for a request path. A path without one yields
// nil.
func (s *Site) post(p string) (*content.Post, error) {
	if s.posts == nil {
		return nil, nil
	}
	post, err := s.posts.Get(content.SlugForPath(strings.TrimSuffix(p, s.ext)))
	if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrInvalidSlug) {
		return nil, nil
	}
	return post, err
}

// render executes the selected template, wrapped in its layout when
// wrapping is enabled and a distinct layout exists.
func (s *Site) render(buf *bytes.Buffer, sel selection, data *PageData) error {
	if !s.wrap() {
		return s.engine.Render(buf, sel.Name, data)
	}

	wrapped := s.layouts.Wrap(sel.Path)
	data.Template = wrapped.Template
	if wrapped.Layout == sel.Path {
		return s.engine.Render(buf, sel.Name, data)
	}
	layout, err := cascade.Reduce(cascade.Resolved{Path: wrapped.Layout}, s.roots)
	if err != nil {
		return err
	}

	var content bytes.Buffer
	if err = s.engine.Render(&content, sel.Name, data); err != nil {
		return err
	}
	data.Content = template.HTML(content.String())
	data.Layout = layout
	return s.engine.Render(buf, layout, data)
}

func (s *Site) record(r *http.Request, id cascade.Identifier, name string, renderErr error) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Record(r.Context(), string(id), name, renderErr != nil); err != nil {
		s.logger.Error("Failed to record render stats", "error", err)
	}
}

// renderView is the "view" template function. Within a page, an empty
// identifier renders the view matching the page's own identifier. An inert
// viewer renders nothing.
func (s *Site) renderView(id string, data any) (template.HTML, error) {
	v := s.viewer()
	if v == nil {
		return "", nil
	}
	req := view.Request{Template: cascade.Identifier(id), Data: data}
	if page, ok := data.(*PageData); ok {
		req.Current = page.Identifier
	}
	out, err := v.RenderString(req)
	if err != nil {
		if errors.Is(err, templating.ErrEngineUnavailable) {
			return "", nil
		}
		return "", err
	}
	return template.HTML(out), nil
}

// Engine returns the theme engine.
func (s *Site) Engine() *templating.Engine { return s.engine }
