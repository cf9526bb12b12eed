package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when no content file exists for a slug.
	ErrNotFound = errors.New("content: post not found")

	// ErrInvalidSlug is returned for a slug that would leave the content
	// directory.
	ErrInvalidSlug = errors.New("content: invalid slug")
)

const (
	// Extension is the file extension of content files.
	Extension = ".md"
	// IndexSlug is the slug of the site root.
	IndexSlug = "index"
	// DefaultType is the post type used when front matter names none.
	DefaultType = "page"
	// MoreMarker ends the excerpt when present in the body.
	MoreMarker = "<!--more-->"
)

// frontMatter is the YAML header of a content file.
type frontMatter struct {
	Type      string            `yaml:"type"`
	Author    string            `yaml:"author"`
	Title     string            `yaml:"title"`
	Excerpt   string            `yaml:"excerpt"`
	Thumbnail string            `yaml:"thumbnail"`
	Meta      map[string]string `yaml:"meta"`
	Category  []string          `yaml:"category"`
	Classes   []string          `yaml:"classes"`
	Tags      []string          `yaml:"tags"`
	Published time.Time         `yaml:"published"`
	Modified  time.Time         `yaml:"modified"`
}

// Store reads posts from a directory of markdown files.
type Store struct {
	dir    string
	logger *slog.Logger
	md     goldmark.Markdown
}

// NewStore returns a Store over dir. The directory does not need to exist;
// every lookup then reports ErrNotFound.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Dir returns the content directory.
func (s *Store) Dir() string { return s.dir }

// SlugForPath maps a request path to a slug: "/" is "index", "/blog/hello/"
// is "blog/hello".
func SlugForPath(p string) string {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" {
		return IndexSlug
	}
	return clean
}

// Get loads the post stored under slug. Its permalink is the slug's URL
// path.
func (s *Store) Get(slug string) (*Post, error) {
	if slug == "" || !filepath.IsLocal(filepath.FromSlash(slug)) || strings.Contains(slug, "\\") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	file := filepath.Join(s.dir, filepath.FromSlash(slug)+Extension)

	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	post, err := s.parse(raw, info.ModTime())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	post.ID = slug
	post.Permalink = "/"
	if slug != IndexSlug {
		post.Permalink = "/" + slug
	}
	s.logger.Debug("Loaded post", "slug", slug, "title", post.Title)
	return post, nil
}

func (s *Store) parse(raw []byte, modTime time.Time) (*Post, error) {
	header, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, err
	}
	var fm frontMatter
	if len(header) > 0 {
		if err = yaml.Unmarshal(header, &fm); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
	}

	post := &Post{
		Type:      fm.Type,
		Author:    fm.Author,
		Title:     fm.Title,
		Thumbnail: fm.Thumbnail,
		Meta:      fm.Meta,
		Category:  fm.Category,
		Classes:   fm.Classes,
		Tags:      fm.Tags,
		Published: fm.Published,
		Modified:  fm.Modified,
	}
	if post.Type == "" {
		post.Type = DefaultType
	}
	if post.Modified.IsZero() {
		post.Modified = modTime
	}
	if post.Published.IsZero() {
		post.Published = post.Modified
	}

	if post.Content, err = s.render(body); err != nil {
		return nil, err
	}
	excerpt := []byte(fm.Excerpt)
	if len(excerpt) == 0 {
		excerpt = excerptSource(body)
	}
	if post.Excerpt, err = s.render(excerpt); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *Store) render(src []byte) (template.HTML, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := s.md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// body. Files without one are all body.
func splitFrontMatter(raw []byte) (header, body []byte, err error) {
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(raw, []byte("---\n")) {
		return nil, raw, nil
	}
	rest := raw[len("---\n"):]
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		return nil, bytes.TrimPrefix(rest[3:], []byte("\n")), nil
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")], nil, nil
		}
		return nil, nil, errors.New("unterminated front matter")
	}
	return rest[:end], rest[end+len("\n---\n"):], nil
}

// excerptSource is the body up to the more marker, or its first paragraph.
func excerptSource(body []byte) []byte {
	if i := bytes.Index(body, []byte(MoreMarker)); i >= 0 {
		return body[:i]
	}
	body = bytes.TrimLeft(body, "\n")
	if i := bytes.Index(body, []byte("\n\n")); i >= 0 {
		return body[:i]
	}
	return body
}
