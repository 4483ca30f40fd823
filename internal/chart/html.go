package chart

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/monitoring"
)

// RenderHTML writes an interactive page with an acceleration chart and a
// displacement chart for every panel.
func RenderHTML(fsys fsutil.FileSystem, path string, panels []Panel) (err error) {
	if len(panels) == 0 {
		return errors.New("no profiles to plot")
	}

	page := components.NewPage()
	page.SetPageTitle("CPR displacement")
	for _, p := range panels {
		page.AddCharts(accelLine(p), displacementLine(p))
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
	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	monitoring.Logf("wrote %d profile charts to %s", len(panels), path)
	return nil
}

func newLine(title, subtitle, yName string, times []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	labels := make([]string, len(times))
	for i, t := range times {
		labels[i] = strconv.FormatFloat(t, 'f', 3, 64)
	}
	line.SetXAxis(labels)
	return line
}

func accelLine(p Panel) *charts.Line {
	line := newLine("Original - Peak "+p.Label(), p.Name, "Acceleration (g)", p.Time)
	line.AddSeries("Original Accel", lineData(p.AccelG()),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#0000ff", Width: 1}),
	)
	return line
}

func displacementLine(p Panel) *charts.Line {
	subtitle := p.Name
	if len(p.Traces) == 0 {
		subtitle += " (no estimator output)"
	}
	line := newLine("Displacement - Peak "+p.Label(), subtitle, "Displacement (mm)", p.Time)
	for _, tr := range p.Traces {
		c := hexColor(methodColor(tr.Method))
		line.AddSeries(tr.Method.Label(), lineData(tr.Displacement),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: c, Width: 1}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: c}),
		)
	}
	return line
}

func lineData(values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	return data
}
