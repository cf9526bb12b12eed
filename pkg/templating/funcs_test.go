package templating

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// TestTemplateFunctions validates the behavior of each category of template functions.
func TestTemplateFunctions(t *testing.T) {
	e, _, _ := setupTestEngine(t, false)

	t.Run("TextFuncs", func(t *testing.T) {
		if got := wordCount("<p>Hello <b>big</b>\nworld</p>"); got != 3 {
			t.Errorf("wordCount returned %d, expected 3", got)
		}
		if got := wordCount(""); got != 0 {
			t.Errorf("wordCount of empty string returned %d", got)
		}

		html, err := markdown("# Title\n\nsome *text*")
		if err != nil {
			t.Fatalf("markdown failed: %v", err)
		}
		if !strings.Contains(string(html), "<h1>Title</h1>") || !strings.Contains(string(html), "<em>text</em>") {
			t.Errorf("markdown produced unexpected HTML: %s", html)
		}

		code, err := e.highlight("go", "package main")
		if err != nil {
			t.Fatalf("highlight failed: %v", err)
		}
		if !strings.Contains(string(code), "<pre") || !strings.Contains(string(code), "package") {
			t.Errorf("highlight produced unexpected HTML: %s", code)
		}
	})

	t.Run("SimpleFuncs", func(t *testing.T) {
		if divInt(10, 0) != 0 || divInt(10, 3) != 3 {
			t.Error("divInt failed")
		}
		if modInt(10, 0) != 0 || modInt(10, 3) != 1 {
			t.Error("modInt failed")
		}
		if !allTrue(true, true) || allTrue(true, false) {
			t.Error("allTrue failed")
		}
		if !anyTrue(false, true) || anyTrue(false, false) {
			t.Error("anyTrue failed")
		}
		if isSet("") || !isSet("x") || isSet(nil) || isSet(0) {
			t.Error("isSet failed")
		}
		if len(repeat(3)) != 3 || len(repeat(-1)) != 0 {
			t.Error("repeat failed")
		}
	})

	t.Run("InTemplates", func(t *testing.T) {
		var buf bytes.Buffer
		src := `{{range repeat 3}}{{inc .}}{{end}}|{{wordCount "a b c d"}}|{{max 2 5}}|{{if and true (not false)}}yes{{end}}`
		if err := e.ExecuteString(&buf, src, nil); err != nil {
			t.Fatalf("ExecuteString failed: %v", err)
		}
		if buf.String() != "123|4|5|yes" {
			t.Errorf("unexpected output '%s'", buf.String())
		}
	})
}

func TestMarkdown_NotEscaped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(logger, DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var buf bytes.Buffer
	if err = e.ExecuteString(&buf, `{{markdown "**bold**"}}`, nil); err != nil {
		t.Fatalf("ExecuteString failed: %v", err)
	}
	if !strings.Contains(buf.String(), "<strong>bold</strong>") {
		t.Errorf("markdown output was escaped: %s", buf.String())
	}
}
