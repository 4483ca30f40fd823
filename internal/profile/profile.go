// Package profile reads compression profiles from CSV and writes estimator
// results back out next to them.
//
// A raw profile has a "Time (s)" column and one acceleration column whose
// name carries its unit (Acceleration_mm_s2, Acceleration_cm_s2,
// Acceleration_m_s2 or Acceleration_g). Results are written to
// <profile><suffix>.csv with time, acceleration in mm/s², velocity in mm/s and
// displacement in mm.
package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/monitoring"
	"github.com/banshee-data/displacement.report/internal/units"
)

// Column names.
const (
	ColTime         = "Time (s)"
	ColAccelMM      = "Acceleration_mm_s2"
	ColAccelCM      = "Acceleration_cm_s2"
	ColAccelM       = "Acceleration_m_s2"
	ColAccelG       = "Acceleration_g"
	ColVelocity     = "Velocity_mm_s"
	ColDisplacement = "Displacement_mm"
)

// accelColumns are tried in order; the first present column is used.
var accelColumns = []struct {
	name string
	unit string
}{
	{ColAccelMM, units.MMPS2},
	{ColAccelCM, units.CMPS2},
	{ColAccelM, units.MPS2},
	{ColAccelG, units.G},
}

// ResultHeader is the column layout of exported results.
var ResultHeader = []string{ColTime, ColAccelMM, ColVelocity, ColDisplacement}

// NonUniformTolerance is the relative deviation from the first sample
// interval above which a profile is reported as non-uniformly sampled.
const NonUniformTolerance = 0.01

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing column")

// Samples is a loaded profile. Accel is always in mm/s².
type Samples struct {
	Path   string
	Time   []float64
	Accel  []float64
	DT     float64
	Unit   string // unit of the source column before conversion
	Column string // acceleration column that was read
}

// Len returns the number of samples.
func (s *Samples) Len() int { return len(s.Accel) }

// LoadOptions controls how a profile is interpreted.
type LoadOptions struct {
	// FallbackDT is used when the profile has a single row. Must be positive.
	FallbackDT float64
	// Unit overrides the unit implied by the acceleration column name.
	Unit string
}

// Load reads a raw profile and converts the acceleration column to mm/s².
// The sample interval is the difference of the first two timestamps.
func Load(fsys fsutil.FileSystem, path string, opts LoadOptions) (*Samples, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	header, rows, err := readTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	timeIdx, ok := header[ColTime]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w %q", path, ErrMissingColumn, ColTime)
	}
	accelIdx, column, unit := -1, "", ""
	for _, c := range accelColumns {
		if idx, ok := header[c.name]; ok {
			accelIdx, column, unit = idx, c.name, c.unit
			break
		}
	}
	if accelIdx < 0 {
		return nil, fmt.Errorf("profile %s: %w, need one of %s, %s, %s, %s",
			path, ErrMissingColumn, ColAccelMM, ColAccelCM, ColAccelM, ColAccelG)
	}
	if opts.Unit != "" {
		if !units.IsValid(opts.Unit) {
			return nil, fmt.Errorf("unit must be one of %s, got %q", units.GetValidUnitsString(), opts.Unit)
		}
		unit = units.Normalize(opts.Unit)
	}

	s := &Samples{
		Path:   path,
		Time:   make([]float64, 0, len(rows)),
		Accel:  make([]float64, 0, len(rows)),
		Unit:   unit,
		Column: column,
	}
	for i, row := range rows {
		line := i + 2 // 1-based, after the header
		tm, err := parseCell(row, timeIdx)
		if err != nil {
			return nil, fmt.Errorf("profile %s line %d column %q: %w", path, line, ColTime, err)
		}
		a, err := parseCell(row, accelIdx)
		if err != nil {
			return nil, fmt.Errorf("profile %s line %d column %q: %w", path, line, column, err)
		}
		s.Time = append(s.Time, tm)
		s.Accel = append(s.Accel, a)
	}
	if len(s.Accel) == 0 {
		return nil, fmt.Errorf("profile %s: %w: no samples", path, estimator.ErrInvalidInput)
	}
	units.ConvertAll(s.Accel, unit)

	s.DT = opts.FallbackDT
	if len(s.Time) > 1 {
		s.DT = s.Time[1] - s.Time[0]
	}
	if !(s.DT > 0) {
		return nil, fmt.Errorf("profile %s: %w: sample interval must be positive, got %v", path, estimator.ErrInvalidInput, s.DT)
	}
	if len(s.Time) > 1 {
		checkUniform(path, s.Time, s.DT)
	}

	monitoring.Debugf("loaded %s: %d samples, dt=%gs, column %s", path, s.Len(), s.DT, column)
	return s, nil
}

func checkUniform(path string, tm []float64, dt float64) {
	irregular := 0
	worst := 0.0
	for i := 1; i < len(tm); i++ {
		dev := math.Abs((tm[i]-tm[i-1])-dt) / dt
		if dev > NonUniformTolerance {
			irregular++
			worst = math.Max(worst, dev)
		}
	}
	if irregular > 0 {
		monitoring.Warnf("profile %s has %d irregular intervals (worst %.1f%% off dt=%g); assuming uniform sampling",
			path, irregular, worst*100, dt)
	}
}

// readTable reads a CSV with a header row and returns the header as a
// name-to-index map.
func readTable(r io.Reader) (map[string]int, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, err
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[name] = i
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

func parseCell(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return 0, errors.New("row too short")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", row[idx])
	}
	return v, nil
}

var peakRe = regexp.MustCompile(`cpr_profile_([0-9]+(?:\.[0-9]+)?)cmps2`)

// Peak returns the peak acceleration label encoded in a profile file name,
// e.g. "12" for cpr_profile_12cmps2.csv, or "" if the name has none.
func Peak(path string) string {
	m := peakRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return ""
	}
	return m[1]
}

// ProfileName returns the file name of path without directory or extension.
func ProfileName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
