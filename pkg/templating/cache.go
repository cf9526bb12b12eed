package templating

import (
	"html/template"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cacheCleanupInterval = 10 * time.Minute

// cacheEntry is a parsed template together with the source it came from.
type cacheEntry struct {
	tmpl    *template.Template
	path    string
	modTime time.Time
}

// templateCache wraps go-cache with typed access and staleness checks.
type templateCache struct {
	logger *slog.Logger
	ttl    time.Duration
	store  *gocache.Cache
}

func newTemplateCache(logger *slog.Logger, ttl time.Duration) *templateCache {
	return &templateCache{
		logger: logger,
		ttl:    ttl,
		store:  gocache.New(ttl, cacheCleanupInterval),
	}
}

// get returns the cached template for name if it was parsed from path at
// modTime. A stale entry is dropped.
func (c *templateCache) get(name, path string, modTime time.Time) (*template.Template, bool) {
	v, found := c.store.Get(name)
	if !found {
		return nil, false
	}
	entry, ok := v.(*cacheEntry)
	if !ok {
		c.logger.Error("Wrong type in template cache", "name", name)
		c.store.Delete(name)
		return nil, false
	}
	if entry.path != path || !entry.modTime.Equal(modTime) {
		c.logger.Debug("Template cache entry is stale", "name", name, "path", path)
		c.store.Delete(name)
		return nil, false
	}
	c.logger.Debug("Template cache hit", "name", name)
	return entry.tmpl, true
}

func (c *templateCache) put(name, path string, modTime time.Time, tmpl *template.Template) {
	c.store.Set(name, &cacheEntry{tmpl: tmpl, path: path, modTime: modTime}, c.ttl)
}

func (c *templateCache) flush() {
	c.store.Flush()
}

func (c *templateCache) len() int {
	return c.store.ItemCount()
}
