package chart

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/monitoring"
)

const (
	pngWidth     = 16 * vg.Inch
	pngRowHeight = 3 * vg.Inch
)

// RenderPNG draws one row per panel, acceleration on the left and the
// displacement traces on the right, and writes the image to path.
func RenderPNG(fsys fsutil.FileSystem, path string, panels []Panel) (err error) {
	if len(panels) == 0 {
		return errors.New("no profiles to plot")
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		left, err := accelPlot(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		right, err := displacementPlot(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		if i == len(panels)-1 {
			left.X.Label.Text = "Time (s)"
			right.X.Label.Text = "Time (s)"
		}
		plots[i] = []*plot.Plot{left, right}
	}

	img := vgimg.New(pngWidth, vg.Length(len(panels))*pngRowHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		for j := range plots[i] {
			plots[i][j].Draw(canvases[i][j])
		}
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	monitoring.Logf("wrote %d profile rows to %s", len(panels), path)
	return nil
}

func accelPlot(p Panel) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = "Original - Peak " + p.Label()
	pl.Y.Label.Text = "Acceleration (g)"
	pl.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys(p.Time, p.AccelG()))
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{B: 0xff, A: 0xff}
	line.Width = vg.Points(1)
	pl.Add(line)
	pl.Legend.Add("Original Accel", line)
	configureLegend(pl)
	return pl, nil
}

func displacementPlot(p Panel) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = "Displacement - Peak " + p.Label()
	pl.Y.Label.Text = "Displacement (mm)"
	pl.Add(plotter.NewGrid())

	if len(p.Traces) == 0 {
		pl.Title.Text += " (no estimator output)"
		return pl, nil
	}
	for _, tr := range p.Traces {
		line, err := plotter.NewLine(xys(tr.Time, tr.Displacement))
		if err != nil {
			return nil, err
		}
		line.Color = methodColor(tr.Method)
		line.Width = vg.Points(1)
		pl.Add(line)
		pl.Legend.Add(tr.Method.Label(), line)
	}
	configureLegend(pl)
	return pl, nil
}

func configureLegend(pl *plot.Plot) {
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10
}

func xys(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return pts
}
