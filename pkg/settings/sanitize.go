package settings

import (
	"log/slog"
	"path/filepath"

	"github.com/CTAG07/Nepenthes/pkg/cascade"
)

// Sanitizer applies the filesystem side effects of an options update.
// Relative paths are resolved against Base.
type Sanitizer struct {
	Base   string
	FS     cascade.Filesystem
	Logger *slog.Logger
}

// Sanitize creates every template path, then creates or removes the cache
// directory depending on UseCache, and returns the options with CacheDir
// updated accordingly. CacheDir is only cleared once the directory was
// actually removed. Directory failures are logged and never reject the
// update.
func (s Sanitizer) Sanitize(opts Options) Options {
	fsys := s.FS
	if fsys == nil {
		fsys = cascade.OSFilesystem{}
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sp := cascade.NewSearchPath(s.Base)

	paths := make([]string, 0, len(opts.TemplatePaths))
	for _, p := range opts.TemplatePaths {
		if p == "" {
			continue
		}
		paths = append(paths, sp.Absolute(p))
	}
	_ = cascade.EnsureDirs(fsys, logger, paths...)

	if opts.UseCache {
		if len(paths) == 0 {
			logger.Warn("Caching enabled without a template path, cache directory not created")
			return opts
		}
		cacheDir := filepath.Join(paths[0], "cache")
		if err := cascade.EnsureDirs(fsys, logger, cacheDir); err == nil {
			opts.CacheDir = cacheDir
		}
		return opts
	}

	if opts.CacheDir != "" {
		removed, err := RemoveTree(sp.Absolute(opts.CacheDir))
		if err != nil {
			logger.Warn("Failed to remove cache directory", "path", opts.CacheDir, "error", err)
			return opts
		}
		if !removed {
			logger.Warn("Cache directory not removed, keeping it recorded", "path", opts.CacheDir)
			return opts
		}
		logger.Info("Removed cache directory", "path", opts.CacheDir)
		opts.CacheDir = ""
	}
	return opts
}
