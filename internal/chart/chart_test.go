package chart

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/monitoring"
	"github.com/banshee-data/displacement.report/internal/profile"
	"github.com/banshee-data/displacement.report/internal/simulate"
)

// writeFixture writes a simulated profile plus the integrated and kalman
// results beside it.
func writeFixture(t *testing.T, fsys fsutil.FileSystem, dir string, peak float64) string {
	t.Helper()
	cfg := simulate.DefaultConfig(peak)
	cfg.Duration = 2
	path, p, err := simulate.WriteFile(fsys, dir, peak, cfg)
	require.NoError(t, err)

	for _, m := range []estimator.Method{estimator.MethodIntegrate, estimator.MethodKalman} {
		recs, err := estimator.Run(p.Samples.Accel, p.Samples.DT, estimator.DefaultConfig(m))
		require.NoError(t, err)
		require.NoError(t, profile.WriteResult(fsys, profile.ResultPath(path, m), p.Samples, recs))
	}
	return path
}

func quiet(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func TestLoadPanels(t *testing.T) {
	quiet(t)
	fsys := fsutil.NewMemoryFileSystem()
	withResults := writeFixture(t, fsys, "data", 12)
	bare, _, err := simulate.WriteFile(fsys, "data", 4, simulate.DefaultConfig(4))
	require.NoError(t, err)

	panels, err := LoadPanels(fsys, []string{withResults, bare}, profile.LoadOptions{})
	require.NoError(t, err)
	require.Len(t, panels, 2)

	assert.Equal(t, "12", panels[0].Peak)
	assert.Equal(t, "12cmps2", panels[0].Label())
	require.Len(t, panels[0].Traces, 2)
	assert.Equal(t, estimator.MethodIntegrate, panels[0].Traces[0].Method)
	assert.Equal(t, estimator.MethodKalman, panels[0].Traces[1].Method)
	assert.Len(t, panels[0].Traces[0].Displacement, len(panels[0].Time))
	assert.Empty(t, panels[1].Traces)

	_, err = LoadPanels(fsys, []string{"data/missing.csv"}, profile.LoadOptions{})
	assert.Error(t, err)
}

func TestRenderPNG(t *testing.T) {
	quiet(t)
	fsys := fsutil.NewMemoryFileSystem()
	path := writeFixture(t, fsys, "data", 12)
	bare, _, err := simulate.WriteFile(fsys, "data", 4, simulate.DefaultConfig(4))
	require.NoError(t, err)

	panels, err := LoadPanels(fsys, []string{path, bare}, profile.LoadOptions{})
	require.NoError(t, err)

	out := filepath.Join("data", "profiles.png")
	require.NoError(t, RenderPNG(fsys, out, panels))

	data, err := fsys.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")), "output is not a PNG")
}

func TestRenderPNG_OSFileSystem(t *testing.T) {
	quiet(t)
	fsys := fsutil.OSFileSystem{}
	dir := t.TempDir()
	path := writeFixture(t, fsys, dir, 8)

	panels, err := LoadPanels(fsys, []string{path}, profile.LoadOptions{})
	require.NoError(t, err)

	out := filepath.Join(dir, "grid.png")
	require.NoError(t, RenderPNG(fsys, out, panels))
	info, err := fsys.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderHTML(t *testing.T) {
	quiet(t)
	fsys := fsutil.NewMemoryFileSystem()
	path := writeFixture(t, fsys, "data", 12)

	panels, err := LoadPanels(fsys, []string{path}, profile.LoadOptions{})
	require.NoError(t, err)

	require.NoError(t, RenderHTML(fsys, "data/profiles.html", panels))
	data, err := fsys.ReadFile("data/profiles.html")
	require.NoError(t, err)

	html := string(data)
	assert.True(t, strings.Contains(html, "<html"))
	assert.Contains(t, html, "Displacement - Peak 12cmps2")
	assert.Contains(t, html, "Kalman Filtered")
}

func TestRender_NoPanels(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	assert.Error(t, RenderPNG(fsys, "x.png", nil))
	assert.Error(t, RenderHTML(fsys, "x.html", nil))
	assert.False(t, fsys.Exists("x.png"))
}
