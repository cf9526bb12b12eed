package templating

import (
	"bytes"
	"html/template"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

func (e *Engine) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Text
		"wordCount": wordCount,
		"markdown":  markdown,
		"highlight": e.highlight,

		// Arithmetic
		"add":  func(a, b int) int { return a + b },
		"sub":  func(a, b int) int { return a - b },
		"mult": func(a, b int) int { return a * b },
		"div":  divInt,
		"mod":  modInt,
		"inc":  func(i int) int { return i + 1 },
		"dec":  func(i int) int { return i - 1 },
		"max":  func(a, b int) int { return max(a, b) },
		"min":  func(a, b int) int { return min(a, b) },

		// Logic & collections
		"and":    allTrue,
		"or":     anyTrue,
		"not":    func(b bool) bool { return !b },
		"isSet":  isSet,
		"list":   func(args ...any) []any { return args },
		"repeat": repeat,
	}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// wordCount counts the words of s after stripping HTML tags.
func wordCount(s string) int {
	return len(strings.Fields(tagPattern.ReplaceAllString(s, " ")))
}

var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

// markdown converts GitHub-flavoured markdown to HTML.
func markdown(s string) (template.HTML, error) {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(s), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// highlight renders code as syntax-highlighted HTML. An unknown language
// falls back to plain text.
func (e *Engine) highlight(language, code string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, code, language, "html", e.config.HighlightStyle); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// divInt returns a / b, or 0 when b is 0.
func divInt(a, b int) int {
	if b == 0 {
		return 0
	}
	return a / b
}

// modInt returns a % b, or 0 when b is 0.
func modInt(a, b int) int {
	if b == 0 {
		return 0
	}
	return a % b
}

func allTrue(args ...bool) bool {
	for _, a := range args {
		if !a {
			return false
		}
	}
	return true
}

func anyTrue(args ...bool) bool {
	for _, a := range args {
		if a {
			return true
		}
	}
	return false
}

// isSet returns true if a value is not its zero value.
func isSet(val any) bool {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return false
	}
	return !v.IsZero()
}

// repeat returns 0..count-1, for ranging a fixed number of times.
func repeat(count int) []int {
	if count < 0 {
		return []int{}
	}
	s := make([]int, count)
	for i := range s {
		s[i] = i
	}
	return s
}
