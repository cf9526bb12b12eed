package cascade

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultSentinel is the generic identifier that is never decomposed.
const DefaultSentinel = "index"

// Identifier is a hyphen-segmented logical template name, e.g. "page-about".
type Identifier string

// Validate reports whether the identifier can be resolved. Identifiers may
// contain forward slashes to name nested templates, but never an absolute
// path, a backslash, a NUL byte or a ".." element, including one exposed by
// trimming hyphen segments.
func (id Identifier) Validate() error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	s := string(id)
	if strings.HasPrefix(s, "/") || filepath.IsAbs(s) || strings.ContainsAny(s, "\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	for _, elem := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' }) {
		if elem == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
		}
	}
	return nil
}

// Segments splits the identifier on hyphens, preserving order.
func (id Identifier) Segments() []string {
	if id == "" {
		return nil
	}
	return strings.Split(string(id), "-")
}

// Candidates returns the candidate file names for id, most specific first.
// Each name has exactly one fewer trailing segment than the one before it,
// ending with the first segment alone:
//
//	Candidates("page-about-team", ".html", "index")
//	// ["page-about-team.html", "page-about.html", "page.html"]
//
// When id equals sentinel no decomposition happens and the result is empty;
// the caller appends its own generic fallback.
func Candidates(id Identifier, ext, sentinel string) ([]string, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if sentinel != "" && string(id) == sentinel {
		return []string{}, nil
	}

	segments := id.Segments()
	names := make([]string, 0, len(segments))
	for i := len(segments); i > 0; i-- {
		names = append(names, strings.Join(segments[:i], "-")+ext)
	}
	return names, nil
}

// WithFallback appends fallback names that are not already present, keeping
// order. It is how call sites terminate a cascade on a generic name.
func WithFallback(candidates []string, fallbacks ...string) []string {
	out := make([]string, 0, len(candidates)+len(fallbacks))
	out = append(out, candidates...)
	for _, f := range fallbacks {
		if f == "" || contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
