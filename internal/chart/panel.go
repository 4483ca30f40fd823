// Package chart renders profiles and estimator output for visual inspection:
// a PNG grid through gonum/plot and an interactive HTML page through
// go-echarts.
package chart

import (
	"fmt"
	"image/color"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/profile"
	"github.com/banshee-data/displacement.report/internal/units"
)

// Trace is the displacement output of one method.
type Trace struct {
	Method       estimator.Method
	Time         []float64
	Displacement []float64
}

// Panel is one profile row: the measured acceleration and any traces.
type Panel struct {
	Name   string
	Peak   string
	Time   []float64
	Accel  []float64 // mm/s²
	Traces []Trace
}

// AccelG returns the acceleration in g, the unit the plots use.
func (p Panel) AccelG() []float64 {
	out := make([]float64, len(p.Accel))
	for i, a := range p.Accel {
		out[i] = a / units.StandardGravity
	}
	return out
}

// Label is the short title suffix for the panel.
func (p Panel) Label() string {
	if p.Peak != "" {
		return p.Peak + "cmps2"
	}
	return p.Name
}

// LoadPanels reads each profile and whichever result files exist beside it.
func LoadPanels(fsys fsutil.FileSystem, paths []string, opts profile.LoadOptions) ([]Panel, error) {
	panels := make([]Panel, 0, len(paths))
	for _, path := range paths {
		s, err := profile.Load(fsys, path, opts)
		if err != nil {
			return nil, err
		}
		p := Panel{
			Name:  profile.ProfileName(path),
			Peak:  profile.Peak(path),
			Time:  s.Time,
			Accel: s.Accel,
		}
		for _, m := range estimator.Methods {
			rp := profile.ResultPath(path, m)
			if !fsys.Exists(rp) {
				continue
			}
			res, err := profile.LoadResult(fsys, rp)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s result: %w", m, err)
			}
			p.Traces = append(p.Traces, Trace{Method: m, Time: res.Time, Displacement: res.Displacement})
		}
		panels = append(panels, p)
	}
	return panels, nil
}

// methodColor keeps each method's colour consistent across both renderers.
func methodColor(m estimator.Method) color.RGBA {
	switch m {
	case estimator.MethodIntegrate:
		return color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	case estimator.MethodHighPass:
		return color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	default:
		return color.RGBA{A: 0xff}
	}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
