package cascade

import (
	"path/filepath"
	"strings"
)

// Reduce strips the matching root, plus one separator, from resolved.Path
// and returns the remainder in slash form. resolved.Root is preferred when
// it is one of roots; otherwise the first root in priority order that is a
// directory prefix of the path is used. A root only matches on a directory
// boundary, so "/theme/twig" never matches "/theme/twig2/x".
func Reduce(resolved Resolved, roots []string) (string, error) {
	path := filepath.Clean(resolved.Path)

	if resolved.Root != "" && contains(roots, resolved.Root) {
		if rel, ok := trimRoot(path, resolved.Root); ok {
			return rel, nil
		}
	}
	for _, root := range roots {
		if rel, ok := trimRoot(path, root); ok {
			return rel, nil
		}
	}
	return "", ErrOutsideRoots
}

func trimRoot(path, root string) (string, bool) {
	root = filepath.Clean(root)
	if path == root || !hasDirPrefix(path, root) {
		return "", false
	}
	rel := strings.TrimPrefix(path, root)
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		rel = rel[1:]
	}
	return filepath.ToSlash(rel), true
}
