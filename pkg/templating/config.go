package templating

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TemplateConfig holds all configuration options for the rendering engine.
type TemplateConfig struct {
	// Extension is the file extension of view templates, including the dot.
	Extension string `json:"extension"`

	// PartialSuffix marks shared partial files inside EnginePath. With the
	// defaults a partial is named "*.part.html".
	PartialSuffix string `json:"partial_suffix"`

	// EnginePath is the engine runtime: a directory of shared partials that
	// every template can reference with {{template "name"}}. Empty disables
	// partials. A configured path that cannot be read makes the engine
	// unavailable. Set from the settings store, not the config file.
	EnginePath string `json:"-"`

	// UseCache keeps parsed templates in memory between renders.
	// Set from the settings store, not the config file.
	UseCache bool `json:"-"`

	// CacheExpirationSec is how long a parsed template stays cached.
	CacheExpirationSec int `json:"cache_expiration_sec"`

	// HighlightStyle is the chroma style used by the highlight function.
	HighlightStyle string `json:"highlight_style"`
}

// DefaultConfig returns a TemplateConfig with default values. Caching is
// off by default, matching a fresh install.
func DefaultConfig() *TemplateConfig {
	return &TemplateConfig{
		Extension:          ".html",
		PartialSuffix:      ".part",
		UseCache:           false,
		CacheExpirationSec: 1800,
		HighlightStyle:     "monokai",
	}
}

func (c *TemplateConfig) cacheExpiration() time.Duration {
	if c.CacheExpirationSec <= 0 {
		return gocache.NoExpiration
	}
	return time.Duration(c.CacheExpirationSec) * time.Second
}

func (c *TemplateConfig) partialPattern() string {
	return "*" + c.PartialSuffix + c.Extension
}
