package cascade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutCandidates(t *testing.T) {
	require.Equal(t,
		[]string{"_layout-page-about.php", "_layout-page.php", "_layout.php", "page-about.php"},
		LayoutCandidates("/theme/page-about.php", DefaultSentinel))

	require.Equal(t,
		[]string{"_layout.php", "index.php"},
		LayoutCandidates("/theme/index.php", DefaultSentinel))

	require.Equal(t,
		[]string{"_layout-single.html", "_layout.html", "single.html"},
		LayoutCandidates("single.html", DefaultSentinel))
}

func TestLayoutResolver_SpecificityBeatsRootPriority(t *testing.T) {
	fs := newMemFS("/child/_layout.html", "/parent/_layout-page.html")
	lr := NewLayoutResolver(fs, DefaultSentinel, "/child", "/parent")

	w := lr.Wrap("/parent/page-about.html")
	require.Equal(t, filepath.FromSlash("/parent/_layout-page.html"), w.Layout)
	require.Equal(t, "/parent/page-about.html", w.TemplatePath)
	require.Equal(t, "page-about", w.Template)
}

func TestLayoutResolver_OverrideRootFirst(t *testing.T) {
	fs := newMemFS("/child/_layout.html", "/parent/_layout.html")
	lr := NewLayoutResolver(fs, DefaultSentinel, "/child", "/parent")

	w := lr.Wrap("/parent/index.html")
	require.Equal(t, filepath.FromSlash("/child/_layout.html"), w.Layout)
	require.Equal(t, "index", w.Template)
}

func TestLayoutResolver_FallsBackToTemplate(t *testing.T) {
	fs := newMemFS("/parent/page.html")
	lr := NewLayoutResolver(fs, DefaultSentinel, "/child", "/parent")

	w := lr.Wrap("/parent/page.html")
	require.Equal(t, filepath.FromSlash("/parent/page.html"), w.Layout)
}

func TestLayoutResolver_NeverFails(t *testing.T) {
	lr := NewLayoutResolver(newMemFS(), DefaultSentinel, "/child", "/parent")

	w := lr.Wrap("/somewhere/else/page.html")
	require.Equal(t, "/somewhere/else/page.html", w.Layout)
	require.Equal(t, "page", w.Template)
}

func TestLayoutResolver_SameRootsCollapse(t *testing.T) {
	lr := NewLayoutResolver(nil, DefaultSentinel, "/theme", "/theme/")
	require.Equal(t, []string{"/theme"}, lr.Roots())
}

func TestLayoutResolver_OnDisk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "_layout-page.html"), []byte("L"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "page-about.html"), []byte("T"), 0o644))

	lr := NewLayoutResolver(OSFilesystem{}, DefaultSentinel, "", root)
	w := lr.Wrap(filepath.Join(root, "page-about.html"))
	require.Equal(t, filepath.Join(root, "_layout-page.html"), w.Layout)
}
