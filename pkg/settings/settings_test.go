package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, base string) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "options.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, SetupSchema(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(db, logger, Defaults(base), Sanitizer{Base: base})
}

func TestPaths_UnmarshalJSON(t *testing.T) {
	var p Paths
	require.NoError(t, json.Unmarshal([]byte(`"views"`), &p))
	assert.Equal(t, Paths{"views"}, p)

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &p))
	assert.Equal(t, Paths{"a", "b"}, p)

	require.NoError(t, json.Unmarshal([]byte(`""`), &p))
	assert.Empty(t, p)

	assert.Error(t, json.Unmarshal([]byte(`42`), &p))
}

func TestStore_LoadDefaults(t *testing.T) {
	base := t.TempDir()
	store := setupTestStore(t, base)

	opts, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(base), opts)
}

func TestStore_SaveAndLoad(t *testing.T) {
	base := t.TempDir()
	store := setupTestStore(t, base)
	ctx := context.Background()

	saved, err := store.Save(ctx, Options{
		TemplatePaths:   Paths{"custom/views", "shared"},
		TemplateWrapper: true,
	})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(base, "custom", "views"))
	assert.DirExists(t, filepath.Join(base, "shared"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
	assert.True(t, loaded.TemplateWrapper)
}

func TestStore_PartialRowKeepsDefaults(t *testing.T) {
	base := t.TempDir()
	store := setupTestStore(t, base)
	ctx := context.Background()

	_, err := store.db.Exec("INSERT INTO options (name, value, updated_at) VALUES (?, ?, datetime('now'))",
		OptionName, `{"template_wrapper": true}`)
	require.NoError(t, err)

	opts, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, opts.TemplateWrapper)
	assert.Equal(t, Defaults(base).TemplatePaths, opts.TemplatePaths)
}

func TestStore_CorruptRow(t *testing.T) {
	store := setupTestStore(t, t.TempDir())
	_, err := store.db.Exec("INSERT INTO options (name, value, updated_at) VALUES (?, ?, datetime('now'))",
		OptionName, `{not json`)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}

func TestStore_CacheLifecycle(t *testing.T) {
	base := t.TempDir()
	store := setupTestStore(t, base)
	ctx := context.Background()

	views := filepath.Join(base, "views")
	opts, err := store.Save(ctx, Options{TemplatePaths: Paths{views}, UseCache: true})
	require.NoError(t, err)
	cacheDir := filepath.Join(views, "cache")
	assert.Equal(t, cacheDir, opts.CacheDir)
	assert.DirExists(t, cacheDir)

	// Populate the cache so removal has work to do.
	require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "a", "b", "x.bin"), []byte("x"), 0o644))

	opts.UseCache = false
	opts, err = store.Save(ctx, opts)
	require.NoError(t, err)
	assert.Empty(t, opts.CacheDir)
	assert.NoDirExists(t, cacheDir)
	assert.DirExists(t, views)
}

func TestSanitize_MissingCacheDirIsKept(t *testing.T) {
	base := t.TempDir()
	s := Sanitizer{Base: base, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	missing := filepath.Join(base, "gone")
	opts := s.Sanitize(Options{TemplatePaths: Paths{"views"}, CacheDir: missing})
	assert.Equal(t, missing, opts.CacheDir)
	assert.NoDirExists(t, missing)

	// A plain file is not a directory and is left alone.
	file := filepath.Join(base, "cache.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	opts = s.Sanitize(Options{TemplatePaths: Paths{"views"}, CacheDir: file})
	assert.Equal(t, file, opts.CacheDir)
	assert.FileExists(t, file)
}

func TestStore_Export(t *testing.T) {
	base := t.TempDir()
	store := setupTestStore(t, base)
	ctx := context.Background()

	_, err := store.Save(ctx, Options{TemplatePaths: Paths{"views"}, EnginePath: "/srv/engine"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, store.Export(ctx, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Options
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "/srv/engine", got.EnginePath)
	assert.Equal(t, Paths{"views"}, got.TemplatePaths)
}

func TestRemoveTree(t *testing.T) {
	t.Run("Nested", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "tree")
		deep := root
		for i := 0; i < 50; i++ {
			deep = filepath.Join(deep, "d")
		}
		require.NoError(t, os.MkdirAll(deep, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(deep, "leaf"), nil, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "top"), nil, 0o644))

		removed, err := RemoveTree(root)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.NoDirExists(t, root)
	})

	t.Run("DoesNotFollowSymlinks", func(t *testing.T) {
		tmp := t.TempDir()
		outside := filepath.Join(tmp, "outside")
		require.NoError(t, os.MkdirAll(outside, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(outside, "keep"), nil, 0o644))

		root := filepath.Join(tmp, "tree")
		require.NoError(t, os.MkdirAll(root, 0o755))
		if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}

		removed, err := RemoveTree(root)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.FileExists(t, filepath.Join(outside, "keep"))
	})

	t.Run("NoOp", func(t *testing.T) {
		removed, err := RemoveTree("")
		assert.NoError(t, err)
		assert.False(t, removed)

		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		removed, err = RemoveTree(file)
		assert.NoError(t, err)
		assert.False(t, removed)
		assert.FileExists(t, file)

		removed, err = RemoveTree(filepath.Join(t.TempDir(), "missing"))
		assert.NoError(t, err)
		assert.False(t, removed)
	})
}
