package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/displacement.report/internal/db"
	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/monitoring"
	"github.com/banshee-data/displacement.report/internal/profile"
	"github.com/banshee-data/displacement.report/internal/testutil"
)

func newFixture(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("data/cpr_profile_4cmps2.csv",
		[]byte(testutil.ProfileCSV([]float64{0, 1, 2, 3}, []float64{0, 2, 2, 0})), 0644))
	require.NoError(t, fsys.WriteFile("data/cpr_profile_12cmps2.csv",
		[]byte(testutil.ProfileCSV(testutil.Times(50, 0.01), testutil.Constant(50, 10))), 0644))
	return fsys
}

func execute(t *testing.T, fsys fsutil.FileSystem, stdin string, args ...string) (string, error) {
	t.Helper()
	opts, err := parseFlags(args, io.Discard)
	require.NoError(t, err)
	var out bytes.Buffer
	err = run(context.Background(), opts, fsys, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestList(t *testing.T) {
	fsys := newFixture(t)
	out, err := execute(t, fsys, "", "-dir", "data", "-list")
	require.NoError(t, err)
	assert.Equal(t, "Available CSV files:\n0: cpr_profile_12cmps2.csv\n1: cpr_profile_4cmps2.csv\n", out)
}

func TestEstimate_Flags(t *testing.T) {
	fsys := newFixture(t)
	out, err := execute(t, fsys, "", "-dir", "data", "-index", "1", "-method", "integrate")
	require.NoError(t, err)

	assert.Contains(t, out, "Index\tVelocity (mm/s)\tDisplacement (mm)\n")
	assert.Contains(t, out, "3\t4.00\t\t6.00\n")
	assert.Contains(t, out, "Results saved to data/cpr_profile_4cmps2_integrated.csv")

	res, err := profile.LoadResult(fsys, "data/cpr_profile_4cmps2_integrated.csv")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 2.5, 6}, res.Displacement)
}

func TestEstimate_Prompts(t *testing.T) {
	fsys := newFixture(t)
	out, err := execute(t, fsys, "1\n3\n", "-dir", "data", "-quiet")
	require.NoError(t, err)

	assert.Contains(t, out, "Enter the number of the file to use")
	assert.Contains(t, out, "Integration with Kalman filter (3)")
	assert.NotContains(t, out, "Index\tVelocity")
	assert.True(t, fsys.Exists("data/cpr_profile_4cmps2_kalman.csv"))
}

func TestEstimate_BadSelection(t *testing.T) {
	fsys := newFixture(t)

	_, err := execute(t, fsys, "7\n", "-dir", "data", "-method", "1")
	assert.ErrorContains(t, err, "out of range")

	_, err = execute(t, fsys, "x\n", "-dir", "data", "-method", "1")
	assert.ErrorContains(t, err, "invalid profile number")

	_, err = execute(t, fsys, "9\n", "-dir", "data", "-index", "0")
	assert.ErrorIs(t, err, estimator.ErrInvalidConfig)

	_, err = execute(t, fsys, "", "-dir", "data", "-index", "0", "-method", "highpass", "-alpha", "0")
	assert.ErrorIs(t, err, estimator.ErrInvalidConfig)
}

func TestCompare_WritesAllResults(t *testing.T) {
	fsys := newFixture(t)
	out, err := execute(t, fsys, "", "-dir", "data", "-index", "0", "-compare")
	require.NoError(t, err)

	assert.Contains(t, out, "cpr_profile_12cmps2.csv (50 samples")
	for _, m := range estimator.Methods {
		assert.Contains(t, out, m.Label())
		assert.True(t, fsys.Exists(profile.ResultPath("data/cpr_profile_12cmps2.csv", m)), m.String())
	}
}

func TestSimulateThenPlot(t *testing.T) {
	fsys := newFixture(t)

	out, err := execute(t, fsys, "", "-dir", "data", "-simulate", "8", "-noise", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "data/cpr_profile_8cmps2.csv")
	for _, m := range estimator.Methods {
		assert.Contains(t, out, m.Label())
	}
	assert.Contains(t, out, "displacement RMSE")

	_, err = execute(t, fsys, "", "-dir", "data", "-png", "data/grid.png", "-html", "data/grid.html")
	require.NoError(t, err)
	assert.True(t, fsys.Exists("data/grid.png"))
	assert.True(t, fsys.Exists("data/grid.html"))
}

func TestRunStore(t *testing.T) {
	fsys := fsutil.OSFileSystem{}
	dir := t.TempDir()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	csv := testutil.ProfileCSV([]float64{0, 1, 2, 3}, []float64{0, 2, 2, 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cpr_profile_4cmps2.csv"), []byte(csv), 0644))
	dbPath := filepath.Join(dir, "runs.db")

	out, err := execute(t, fsys, "", "-dir", dir, "-index", "0", "-method", "integrate", "-quiet", "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded integrate run")
	id := runID(t, out)

	out, err = execute(t, fsys, "", "-runs", "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "cpr_profile_4cmps2")
	assert.Contains(t, out, "integrate")

	out, err = execute(t, fsys, "", "-run", id, "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+id+": Integrated on cpr_profile_4cmps2")
	assert.Contains(t, out, "3\t4.00\t\t6.00\n")

	out, err = execute(t, fsys, "", "-delete-run", id, "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run "+id)

	_, err = execute(t, fsys, "", "-run", id, "-db", dbPath)
	assert.ErrorIs(t, err, db.ErrRunNotFound)
	_, err = execute(t, fsys, "", "-delete-run", id, "-db", dbPath)
	assert.ErrorIs(t, err, db.ErrRunNotFound)

	out, err = execute(t, fsys, "", "-runs", "-db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded\n", out)

	for _, args := range [][]string{{"-runs"}, {"-run", id}, {"-delete-run", id}, {"-migrate", "status"}} {
		_, err = execute(t, fsys, "", args...)
		assert.ErrorContains(t, err, "requires -db", args)
	}
}

func runID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if rest, ok := strings.CutPrefix(line, "Recorded integrate run "); ok {
			id, _, _ := strings.Cut(rest, " ")
			return id
		}
	}
	t.Fatalf("no run ID in output %q", out)
	return ""
}

func TestMigrate(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
	fsys := fsutil.OSFileSystem{}
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, fsys, "", "-migrate", "status", "-db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "Schema version 1 (dirty: false)\n", out)

	out, err = execute(t, fsys, "", "-migrate", "down", "-db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "Schema version 0 (dirty: false)\n", out)

	// Opening the store again reapplies the schema.
	out, err = execute(t, fsys, "", "-migrate", "up", "-db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "Schema version 1 (dirty: false)\n", out)

	_, err = execute(t, fsys, "", "-migrate", "sideways", "-db", dbPath)
	assert.ErrorContains(t, err, "unknown migrate action")
}

func TestConfigFile(t *testing.T) {
	fsys := newFixture(t)
	cfgPath := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("method: highpass\nalpha: 1\n"), 0644))

	out, err := execute(t, fsys, "", "-dir", "data", "-index", "1", "-config", cfgPath)
	require.NoError(t, err)
	// alpha=1 reproduces the plain integrator.
	assert.Contains(t, out, "3\t4.00\t\t6.00\n")
	assert.True(t, fsys.Exists("data/cpr_profile_4cmps2_filtered.csv"))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, fsutil.NewMemoryFileSystem(), "", "-version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "cprdisp dev"))
}
