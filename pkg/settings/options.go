// Package settings persists the view options of a site in SQLite and applies
// the side effects that come with changing them: template directories are
// created, and the cache directory is created or removed as caching is
// switched on or off.
package settings

import (
	"encoding/json"
	"path/filepath"
)

// OptionName is the key the options are stored under.
const OptionName = "nepenthes-options"

// Paths is a list of template directories. In JSON it accepts either a
// single string or an array of strings.
type Paths []string

// UnmarshalJSON accepts "dir" as well as ["dir1", "dir2"].
func (p *Paths) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*p = nil
		} else {
			*p = Paths{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*p = many
	return nil
}

// Options are the site-level view settings.
type Options struct {
	// TemplatePaths are the view roots, highest priority first. Relative
	// paths are resolved against the site base directory.
	TemplatePaths Paths `json:"template_paths"`

	// TemplateWrapper enables layout wrapping of host templates.
	TemplateWrapper bool `json:"template_wrapper"`

	// UseCache enables the engine's parsed-template cache.
	UseCache bool `json:"use_cache"`

	// CacheDir is the cache directory, managed by Sanitize.
	CacheDir string `json:"cache_dir"`

	// EnginePath is the engine runtime (shared partials) directory.
	EnginePath string `json:"engine_path"`
}

// Defaults returns the options of a fresh install for a theme directory.
func Defaults(themeDir string) Options {
	return Options{
		TemplatePaths:   Paths{filepath.Join(themeDir, "views")},
		TemplateWrapper: false,
		UseCache:        false,
		CacheDir:        filepath.Join(themeDir, "views", "cache"),
		EnginePath:      "",
	}
}
