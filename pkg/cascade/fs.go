package cascade

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Filesystem is the slice of the filesystem the cascade needs.
type Filesystem interface {
	// Exists reports whether path names an existing regular file.
	Exists(path string) bool

	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
}

// OSFilesystem implements Filesystem on top of the os package.
type OSFilesystem struct {
	// Perm is used for created directories. Zero means 0o755.
	Perm os.FileMode
}

// Exists reports whether path is an existing file. Directories are not hits.
func (f OSFilesystem) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// MkdirAll creates the directory tree rooted at path.
func (f OSFilesystem) MkdirAll(path string) error {
	perm := f.Perm
	if perm == 0 {
		perm = 0o755
	}
	return os.MkdirAll(path, perm)
}

// DirCreateError records a directory that could not be created.
type DirCreateError struct {
	Path string
	Err  error
}

func (e *DirCreateError) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *DirCreateError) Unwrap() error { return e.Err }

// EnsureDirs creates every directory in paths, best effort. Failures are
// logged and returned joined; they never stop the remaining directories from
// being attempted, and callers resolving templates may ignore the result.
func EnsureDirs(fsys Filesystem, logger *slog.Logger, paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := fsys.MkdirAll(p); err != nil {
			if logger != nil {
				logger.Warn("Failed to create template directory", "path", p, "error", err)
			}
			errs = append(errs, &DirCreateError{Path: p, Err: err})
		}
	}
	return errors.Join(errs...)
}
