// Package content loads the page records handed to theme templates. A page
// is a markdown file with optional YAML front matter, stored under a content
// directory at the path of the URL it is served at.
package content

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	dateLayout      = "2006-01-02"
	dateHumanLayout = "Monday 2 Jan"
	timeLayout      = "15:04:05"
	timeHumanLayout = "3 pm"
)

// Post is the record for a single page. Every attribute a template may read
// is a field or method; there is no dynamic lookup.
type Post struct {
	// ID is the slug the post was loaded from, e.g. "blog/hello".
	ID        string            `json:"id" yaml:"id"`
	Type      string            `json:"type" yaml:"type"`
	Author    string            `json:"author,omitempty" yaml:"author,omitempty"`
	Title     string            `json:"title" yaml:"title"`
	Excerpt   template.HTML     `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	Content   template.HTML     `json:"content" yaml:"content"`
	Thumbnail string            `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Meta      map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	Category  []string          `json:"category,omitempty" yaml:"category,omitempty"`
	Classes   []string          `json:"classes,omitempty" yaml:"classes,omitempty"`
	Tags      []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Permalink string            `json:"permalink" yaml:"permalink"`
	Published time.Time         `json:"published" yaml:"published"`
	Modified  time.Time         `json:"modified" yaml:"modified"`
}

// HasMeta reports whether key is set in the post's meta values.
func (p *Post) HasMeta(key string) bool {
	_, ok := p.Meta[key]
	return ok
}

// PublishedDate is the publish date as 2006-01-02.
func (p *Post) PublishedDate() string { return p.Published.Format(dateLayout) }

// PublishedDateHuman is the publish date as "Monday 2 Jan".
func (p *Post) PublishedDateHuman() string { return p.Published.Format(dateHumanLayout) }

// PublishedTime is the publish time as 15:04:05.
func (p *Post) PublishedTime() string { return p.Published.Format(timeLayout) }

// PublishedTimeHuman is the publish hour as "3 pm".
func (p *Post) PublishedTimeHuman() string { return p.Published.Format(timeHumanLayout) }

// PublishedAgo is the publish time relative to now, e.g. "3 days ago".
func (p *Post) PublishedAgo() string { return humanize.Time(p.Published) }

func (p *Post) ModifiedDate() string      { return p.Modified.Format(dateLayout) }
func (p *Post) ModifiedDateHuman() string { return p.Modified.Format(dateHumanLayout) }
func (p *Post) ModifiedTime() string      { return p.Modified.Format(timeLayout) }
func (p *Post) ModifiedTimeHuman() string { return p.Modified.Format(timeHumanLayout) }
func (p *Post) ModifiedAgo() string       { return humanize.Time(p.Modified) }
