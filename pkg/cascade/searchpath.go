package cascade

import (
	"path/filepath"
	"strings"
)

// SearchPath is an ordered, duplicate-free list of absolute directory roots.
// Index 0 has the highest priority. It is not safe for concurrent mutation;
// owners that share it across goroutines must serialize Add.
type SearchPath struct {
	base       string
	roots      []string
	generation uint64
}

// NewSearchPath returns an empty SearchPath. Relative roots added later are
// made absolute against base.
func NewSearchPath(base string, roots ...string) *SearchPath {
	sp := &SearchPath{base: filepath.Clean(base)}
	sp.Add(roots...)
	return sp
}

// Absolute returns path made absolute against the base directory. A path
// already starting with the base, or already absolute, is only cleaned.
func (sp *SearchPath) Absolute(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) || hasDirPrefix(path, sp.base) {
		return filepath.Clean(path)
	}
	return filepath.Join(sp.base, path)
}

// Add appends roots that are not yet present and reports whether anything
// was added. Adding a known root is a no-op.
func (sp *SearchPath) Add(roots ...string) bool {
	added := false
	for _, r := range roots {
		abs := sp.Absolute(r)
		if abs == "" || sp.Contains(abs) {
			continue
		}
		sp.roots = append(sp.roots, abs)
		added = true
	}
	if added {
		sp.generation++
	}
	return added
}

// Contains reports whether root (after making it absolute) is registered.
func (sp *SearchPath) Contains(root string) bool {
	return contains(sp.roots, sp.Absolute(root))
}

// Roots returns a copy of the roots in priority order.
func (sp *SearchPath) Roots() []string {
	out := make([]string, len(sp.roots))
	copy(out, sp.roots)
	return out
}

// Len returns the number of roots.
func (sp *SearchPath) Len() int { return len(sp.roots) }

// Base returns the directory relative roots are resolved against.
func (sp *SearchPath) Base() string { return sp.base }

// Generation increments every time Add changes the root list. Holders of
// state derived from the roots compare it to detect staleness.
func (sp *SearchPath) Generation() uint64 { return sp.generation }

// hasDirPrefix reports whether path equals dir or lies beneath it.
func hasDirPrefix(path, dir string) bool {
	if dir == "" || dir == "." {
		return false
	}
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
