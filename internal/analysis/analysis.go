// Package analysis summarises estimator output and compares methods on the
// same profile.
package analysis

import (
	"context"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/displacement.report/internal/estimator"
)

// Summary describes the displacement trace of one run. Units follow the
// records: mm and mm/s.
type Summary struct {
	Method            estimator.Method
	Samples           int
	FinalVelocity     float64
	FinalDisplacement float64
	PeakToPeak        float64
	MaxAbs            float64
	RMS               float64
	MeanVelocity      float64
	StdVelocity       float64
	// DriftRate is the least-squares slope of displacement over time, mm/s.
	DriftRate float64
}

// Summarize computes a Summary for records produced over sample times t.
func Summarize(m estimator.Method, t []float64, recs []estimator.Record) (Summary, error) {
	if len(recs) == 0 {
		return Summary{}, fmt.Errorf("%w: no records to summarise", estimator.ErrInvalidInput)
	}
	if len(t) != len(recs) {
		return Summary{}, fmt.Errorf("%w: %d times for %d records", estimator.ErrInvalidInput, len(t), len(recs))
	}

	v := estimator.Velocities(recs)
	d := estimator.Displacements(recs)
	last := recs[len(recs)-1]

	s := Summary{
		Method:            m,
		Samples:           len(recs),
		FinalVelocity:     last.Velocity,
		FinalDisplacement: last.Displacement,
		PeakToPeak:        floats.Max(d) - floats.Min(d),
		MaxAbs:            math.Max(math.Abs(floats.Max(d)), math.Abs(floats.Min(d))),
		RMS:               floats.Norm(d, 2) / math.Sqrt(float64(len(d))),
		MeanVelocity:      stat.Mean(v, nil),
	}
	if len(recs) > 1 {
		s.StdVelocity = stat.StdDev(v, nil)
		_, s.DriftRate = stat.LinearRegression(t, d, nil, false)
	}
	return s, nil
}

// RMSE is the root-mean-square difference between an estimate and a
// reference trace of equal length.
func RMSE(estimate, reference []float64) (float64, error) {
	if len(estimate) == 0 || len(estimate) != len(reference) {
		return 0, fmt.Errorf("%w: cannot compare %d values against %d", estimator.ErrInvalidInput, len(estimate), len(reference))
	}
	return floats.Distance(estimate, reference, 2) / math.Sqrt(float64(len(estimate))), nil
}

// Run is the output of one method in a comparison.
type Run struct {
	Config  estimator.Config
	Records []estimator.Record
	Summary Summary
}

// checkEvery bounds how many records are produced between context checks.
const checkEvery = 4096

// Compare runs every configuration over the same samples concurrently. Each
// goroutine owns its own stream; results keep the order of cfgs.
func Compare(ctx context.Context, t, samples []float64, dt float64, cfgs []estimator.Config) ([]Run, error) {
	if len(t) != len(samples) {
		return nil, fmt.Errorf("%w: %d times for %d samples", estimator.ErrInvalidInput, len(t), len(samples))
	}
	streams := make([]*estimator.Stream, len(cfgs))
	for i, cfg := range cfgs {
		s, err := estimator.NewStream(samples, dt, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Method, err)
		}
		streams[i] = s
	}

	runs := make([]Run, len(cfgs))
	g, ctx := errgroup.WithContext(ctx)
	for i := range cfgs {
		g.Go(func() error {
			recs := make([]estimator.Record, 0, streams[i].Len())
			for r := range streams[i].All() {
				if r.Index%checkEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				recs = append(recs, r)
			}
			sum, err := Summarize(cfgs[i].Method, t, recs)
			if err != nil {
				return err
			}
			runs[i] = Run{Config: cfgs[i], Records: recs, Summary: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// WriteTable prints one line per run in a fixed-width table.
func WriteTable(w io.Writer, runs []Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Method\tFinal d (mm)\tPeak-to-peak (mm)\tRMS d (mm)\tDrift (mm/s)\tFinal v (mm/s)")
	for _, r := range runs {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.4f\t%.3f\n",
			r.Config.Method.Label(), s.FinalDisplacement, s.PeakToPeak, s.RMS, s.DriftRate, s.FinalVelocity)
	}
	return tw.Flush()
}
