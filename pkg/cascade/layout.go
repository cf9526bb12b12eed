package cascade

import (
	"path/filepath"
	"strings"
)

// LayoutPrefix is prepended to layout candidate names.
const LayoutPrefix = "_layout"

// Wrapped is the result of LayoutResolver.Wrap.
type Wrapped struct {
	// Layout is the file the host should render instead of the template.
	Layout string
	// TemplatePath is the file the host originally asked to render.
	TemplatePath string
	// Template is the base name of TemplatePath without its extension,
	// e.g. "page-about" for ".../page-about.html".
	Template string
	// Candidates are the layout names that were tried, in order.
	Candidates []string
}

// LayoutResolver picks a master layout for a template about to be rendered.
// Layouts are searched candidate-major across the theme roots, the override
// root first and the base root second.
type LayoutResolver struct {
	resolver *Resolver
	roots    []string
	sentinel string
}

// NewLayoutResolver returns a LayoutResolver over the given theme roots.
// Empty and duplicate roots are dropped.
func NewLayoutResolver(fs Filesystem, sentinel string, override, base string) *LayoutResolver {
	var roots []string
	for _, r := range []string{override, base} {
		if r == "" {
			continue
		}
		r = filepath.Clean(r)
		if !contains(roots, r) {
			roots = append(roots, r)
		}
	}
	return &LayoutResolver{
		resolver: NewResolver(fs),
		roots:    roots,
		sentinel: sentinel,
	}
}

// Roots returns the theme roots in priority order.
func (l *LayoutResolver) Roots() []string {
	out := make([]string, len(l.roots))
	copy(out, l.roots)
	return out
}

// LayoutCandidates returns the layout names for templateFile, for example
// "page-about.html" yields "_layout-page-about.html", "_layout-page.html",
// "_layout.html", "page-about.html".
func LayoutCandidates(templateFile, sentinel string) []string {
	file := filepath.Base(templateFile)
	ext := filepath.Ext(file)
	name := strings.TrimSuffix(file, ext)

	var names []string
	if name != sentinel && name != "" {
		// The name is non-empty, so Candidates cannot fail.
		parts, _ := Candidates(Identifier(name), ext, "")
		for _, p := range parts {
			names = append(names, LayoutPrefix+"-"+p)
		}
	}
	return WithFallback(names, LayoutPrefix+ext, file)
}

// Wrap resolves the layout for templatePath. It never fails: when no layout
// and not even the template itself is found in the theme roots, Layout is
// templatePath unchanged.
func (l *LayoutResolver) Wrap(templatePath string) Wrapped {
	file := filepath.Base(templatePath)
	w := Wrapped{
		Layout:       templatePath,
		TemplatePath: templatePath,
		Template:     strings.TrimSuffix(file, filepath.Ext(file)),
		Candidates:   LayoutCandidates(templatePath, l.sentinel),
	}
	if res, err := l.resolver.Resolve(CandidateMajor, w.Candidates, l.roots); err == nil {
		w.Layout = res.Path
	}
	return w
}
