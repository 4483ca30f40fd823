package profile

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/units"
)

// Discover lists raw profiles in dir matching pattern, sorted by name.
// Result files written by WriteResult are excluded.
func Discover(fsys fsutil.FileSystem, dir, pattern string) ([]string, error) {
	matches, err := fsys.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid profile pattern %q: %w", pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if !IsResult(m) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsResult reports whether path names an exported result rather than a raw
// profile.
func IsResult(path string) bool {
	name := ProfileName(path)
	for _, m := range estimator.Methods {
		if strings.HasSuffix(name, m.OutputSuffix()) || strings.Contains(name, m.OutputSuffix()+"_") {
			return true
		}
	}
	return false
}

// ResultPath returns where the result of method m for the given profile is
// written: cpr_profile_12cmps2.csv becomes cpr_profile_12cmps2_kalman.csv.
func ResultPath(profilePath string, m estimator.Method) string {
	ext := filepath.Ext(profilePath)
	return strings.TrimSuffix(profilePath, ext) + m.OutputSuffix() + ".csv"
}

// Result is an exported estimator run read back from disk.
type Result struct {
	Time         []float64
	Accel        []float64
	Velocity     []float64
	Displacement []float64
}

// WriteResult writes one row per record with the matching time and
// acceleration sample.
func WriteResult(fsys fsutil.FileSystem, path string, s *Samples, records []estimator.Record) (err error) {
	if len(records) != s.Len() {
		return fmt.Errorf("result has %d records for %d samples", len(records), s.Len())
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close result file: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(ResultHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, len(ResultHeader))
	for i, r := range records {
		row[0] = formatFloat(s.Time[i])
		row[1] = formatFloat(s.Accel[i])
		row[2] = formatFloat(r.Velocity)
		row[3] = formatFloat(r.Displacement)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.Index, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush result file: %w", err)
	}
	return nil
}

// LoadResult reads a file written by WriteResult.
func LoadResult(fsys fsutil.FileSystem, path string) (*Result, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result: %w", err)
	}
	defer f.Close()

	header, rows, err := readTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read result %s: %w", path, err)
	}

	idx := make([]int, len(ResultHeader))
	for i, name := range ResultHeader {
		j, ok := header[name]
		if !ok {
			return nil, fmt.Errorf("result %s: %w %q", path, ErrMissingColumn, name)
		}
		idx[i] = j
	}

	res := &Result{
		Time:         make([]float64, len(rows)),
		Accel:        make([]float64, len(rows)),
		Velocity:     make([]float64, len(rows)),
		Displacement: make([]float64, len(rows)),
	}
	cols := [][]float64{res.Time, res.Accel, res.Velocity, res.Displacement}
	for r, row := range rows {
		for c, j := range idx {
			v, err := parseCell(row, j)
			if err != nil {
				return nil, fmt.Errorf("result %s line %d column %q: %w", path, r+2, ResultHeader[c], err)
			}
			cols[c][r] = v
		}
	}
	return res, nil
}

// WriteProfile writes samples as a raw profile with both mm/s² and g
// acceleration columns.
func WriteProfile(fsys fsutil.FileSystem, path string, s *Samples) (err error) {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close profile: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{ColTime, ColAccelMM, ColAccelG}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range s.Accel {
		if err := w.Write([]string{
			formatFloat(s.Time[i]),
			formatFloat(s.Accel[i]),
			formatFloat(s.Accel[i] / units.StandardGravity),
		}); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
