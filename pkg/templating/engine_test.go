package templating

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeFile creates path (and its parents) with content.
func writeFile(tb testing.TB, path, content string) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		tb.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", path, err)
	}
}

// setupTestEngine creates two roots, a partials directory, and an Engine over them.
func setupTestEngine(tb testing.TB, useCache bool) (*Engine, string, string) {
	tb.Helper()

	dir := tb.TempDir()
	high := filepath.Join(dir, "child")
	low := filepath.Join(dir, "parent")
	runtime := filepath.Join(dir, "runtime")

	writeFile(tb, filepath.Join(high, "page.html"), `child page {{.}}`)
	writeFile(tb, filepath.Join(low, "page.html"), `parent page`)
	writeFile(tb, filepath.Join(low, "blog", "post.html"), `post {{template "footer" .}}`)
	writeFile(tb, filepath.Join(runtime, "footer.part.html"), `{{define "footer"}}(footer {{.}}){{end}}`)

	config := DefaultConfig()
	config.UseCache = useCache
	config.EnginePath = runtime

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(logger, config, []string{high, low}, nil)
	if err != nil {
		tb.Fatalf("New failed: %v", err)
	}
	return e, high, low
}

func TestEngine_RenderFirstRootWins(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	var buf bytes.Buffer
	if err := e.Render(&buf, "page.html", "x"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "child page x" {
		t.Errorf("expected output from the first root, got '%s'", buf.String())
	}
}

func TestEngine_RenderNestedWithPartial(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	var buf bytes.Buffer
	if err := e.Render(&buf, "blog/post.html", "y"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "post (footer y)" {
		t.Errorf("unexpected output '%s'", buf.String())
	}
}

func TestEngine_RenderNotFound(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	err := e.Render(io.Discard, "missing.html", nil)
	var nf *TemplateNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected TemplateNotFoundError, got %v", err)
	}
	if nf.Name != "missing.html" || len(nf.Roots) != 2 {
		t.Errorf("unexpected error contents: %+v", nf)
	}
}

func TestEngine_RejectsEscapingNames(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	for _, name := range []string{"../parent/page.html", "/etc/passwd", ""} {
		if e.Exists(name) {
			t.Errorf("name %q should not resolve", name)
		}
	}
}

func TestEngine_ParseError(t *testing.T) {
	e, high, _ := setupTestEngine(t, false)
	writeFile(t, filepath.Join(high, "broken.html"), `{{if}}`)

	err := e.Render(io.Discard, "broken.html", nil)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestEngine_CacheReusesAndRefreshes(t *testing.T) {
	e, high, _ := setupTestEngine(t, true)

	var buf bytes.Buffer
	if err := e.Render(&buf, "page.html", "1"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if e.CachedCount() != 1 {
		t.Fatalf("expected 1 cached template, got %d", e.CachedCount())
	}

	// A newer modification time invalidates the entry.
	path := filepath.Join(high, "page.html")
	writeFile(t, path, `changed {{.}}`)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	buf.Reset()
	if err := e.Render(&buf, "page.html", "2"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "changed 2" {
		t.Errorf("expected refreshed output, got '%s'", buf.String())
	}

	e.ClearCache()
	if e.CachedCount() != 0 {
		t.Errorf("expected empty cache after ClearCache, got %d", e.CachedCount())
	}
}

func TestEngine_NoCacheWhenDisabled(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)
	_ = e.Render(io.Discard, "page.html", nil)
	if e.CachedCount() != 0 {
		t.Errorf("cache should stay empty when disabled, got %d", e.CachedCount())
	}
}

func TestEngine_List(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	names, err := e.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"blog/post.html", "page.html"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestEngine_ListSkipsMissingRoots(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(logger, DefaultConfig(), []string{filepath.Join(t.TempDir(), "nope")}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	names, err := e.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no templates, got %v", names)
	}
}

func TestEngine_UnavailableRuntime(t *testing.T) {
	config := DefaultConfig()
	config.EnginePath = filepath.Join(t.TempDir(), "does-not-exist")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(logger, config, nil, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestEngine_ExtraFuncs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x.html"), `{{shout "hi"}}`)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(logger, DefaultConfig(), []string{root}, map[string]any{
		"shout": strings.ToUpper,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var buf bytes.Buffer
	if err = e.Render(&buf, "x.html", nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "HI" {
		t.Errorf("expected 'HI', got '%s'", buf.String())
	}
}

func TestEngine_ExecuteString(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	var buf bytes.Buffer
	if err := e.ExecuteString(&buf, `{{add 1 2}} {{template "footer" "z"}}`, nil); err != nil {
		t.Fatalf("ExecuteString failed: %v", err)
	}
	if buf.String() != "3 (footer z)" {
		t.Errorf("unexpected output '%s'", buf.String())
	}

	// The string must not leak into later renders.
	if err := e.ExecuteString(io.Discard, `{{define "footer"}}hijack{{end}}ok`, nil); err != nil {
		t.Fatalf("ExecuteString failed: %v", err)
	}
	buf.Reset()
	if err := e.Render(&buf, "blog/post.html", "y"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "post (footer y)" {
		t.Errorf("partials were modified by ExecuteString: '%s'", buf.String())
	}
}

// BenchmarkRender_Cached measures a render served from the parsed-template cache.
func BenchmarkRender_Cached(b *testing.B) {
	e, _, _ := setupTestEngine(b, true)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Render(io.Discard, "blog/post.html", i)
	}
}

// BenchmarkRender_Uncached measures a render that re-parses the file every time.
func BenchmarkRender_Uncached(b *testing.B) {
	e, _, _ := setupTestEngine(b, false)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Render(io.Discard, "blog/post.html", i)
	}
}
