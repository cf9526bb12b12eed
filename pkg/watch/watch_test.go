package watch_test

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/Nepenthes/pkg/watch"
)

func startWatcher(t *testing.T, roots ...string) <-chan struct{} {
	t.Helper()
	cfg := watch.DefaultConfig(roots...)
	cfg.DebounceDur = 50 * time.Millisecond
	w, err := watch.New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0644))

	onChange := startWatcher(t, dir)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("v%d", i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("initial"), 0644))

	onChange := startWatcher(t, dir)
	require.NoError(t, os.WriteFile(other, []byte("changed"), 0644))

	select {
	case <-onChange:
		t.Fatal("should not notify for non-template files")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	onChange := startWatcher(t, dir)

	sub := filepath.Join(dir, "blog")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the watcher time to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	select {
	case <-onChange:
	default:
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "post.html"), []byte("x"), 0644))
	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("expected notification for file in new subdirectory")
	}
}

func TestWatcher_MissingRootAndStop(t *testing.T) {
	cfg := watch.DefaultConfig(filepath.Join(t.TempDir(), "missing"))
	w, err := watch.New(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	require.NoError(t, err)

	_, err = w.Start()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop())
		assert.NoError(t, w.Stop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() timed out")
	}
}
