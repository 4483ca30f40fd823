package analysis

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/simulate"
	"github.com/banshee-data/displacement.report/internal/testutil"
)

func TestSummarize(t *testing.T) {
	recs, err := estimator.Run([]float64{0, 2, 2, 0}, 1, estimator.DefaultConfig(estimator.MethodIntegrate))
	require.NoError(t, err)

	s, err := Summarize(estimator.MethodIntegrate, []float64{0, 1, 2, 3}, recs)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 6.0, s.FinalDisplacement, 1e-12)
	assert.InDelta(t, 4.0, s.FinalVelocity, 1e-12)
	assert.InDelta(t, 6.0, s.PeakToPeak, 1e-12)
	assert.InDelta(t, 6.0, s.MaxAbs, 1e-12)
	assert.InDelta(t, math.Sqrt(42.5/4), s.RMS, 1e-12)
	assert.InDelta(t, 2.0, s.MeanVelocity, 1e-12)
	assert.InDelta(t, 2.0, s.DriftRate, 1e-12)
}

func TestSummarize_SingleRecord(t *testing.T) {
	s, err := Summarize(estimator.MethodKalman, []float64{0}, []estimator.Record{{}})
	require.NoError(t, err)
	assert.Zero(t, s.StdVelocity)
	assert.Zero(t, s.DriftRate)
}

func TestSummarize_Errors(t *testing.T) {
	_, err := Summarize(estimator.MethodIntegrate, nil, nil)
	assert.ErrorIs(t, err, estimator.ErrInvalidInput)

	_, err = Summarize(estimator.MethodIntegrate, []float64{0}, make([]estimator.Record, 2))
	assert.ErrorIs(t, err, estimator.ErrInvalidInput)
}

func TestRMSE(t *testing.T) {
	got, err := RMSE([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 6})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)

	_, err = RMSE([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, estimator.ErrInvalidInput)
}

func constantBias(n int, dt, bias float64) (times, accel []float64) {
	return testutil.Times(n, dt), testutil.Constant(n, bias)
}

func TestCompare_BiasDrift(t *testing.T) {
	times, accel := constantBias(1000, 0.01, 10)
	cfgs := []estimator.Config{
		estimator.DefaultConfig(estimator.MethodIntegrate),
		estimator.DefaultConfig(estimator.MethodHighPass),
		estimator.DefaultConfig(estimator.MethodKalman),
	}

	runs, err := Compare(context.Background(), times, accel, 0.01, cfgs)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	raw := runs[0].Summary
	for i, r := range runs {
		assert.Equal(t, cfgs[i].Method, r.Summary.Method, "order preserved")
		assert.Len(t, r.Records, 1000)
	}
	// 0.5 * 10 * 9.99^2
	assert.InDelta(t, 499.0005, raw.FinalDisplacement, 1e-6)
	assert.Less(t, math.Abs(runs[1].Summary.FinalDisplacement), math.Abs(raw.FinalDisplacement))
	assert.Less(t, math.Abs(runs[2].Summary.FinalDisplacement), math.Abs(raw.FinalDisplacement))
	assert.Greater(t, raw.DriftRate, runs[1].Summary.DriftRate)
}

func TestCompare_MatchesSequentialRun(t *testing.T) {
	cfg := simulate.DefaultConfig(12)
	cfg.NoiseStd = 2
	p, err := simulate.Generate(cfg)
	require.NoError(t, err)

	cfgs := []estimator.Config{estimator.DefaultConfig(estimator.MethodKalman)}
	runs, err := Compare(context.Background(), p.Samples.Time, p.Samples.Accel, p.Samples.DT, cfgs)
	require.NoError(t, err)

	want, err := estimator.Run(p.Samples.Accel, p.Samples.DT, cfgs[0])
	require.NoError(t, err)
	assert.Equal(t, want, runs[0].Records)
}

func TestCompare_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Compare(ctx, []float64{0}, []float64{0, 1}, 1, nil)
	assert.ErrorIs(t, err, estimator.ErrInvalidInput)

	bad := estimator.DefaultConfig(estimator.MethodHighPass)
	bad.Alpha = 0
	_, err = Compare(ctx, []float64{0, 1}, []float64{0, 1}, 1, []estimator.Config{bad})
	assert.ErrorIs(t, err, estimator.ErrInvalidConfig)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Compare(cancelled, []float64{0, 1}, []float64{0, 1}, 1,
		[]estimator.Config{estimator.DefaultConfig(estimator.MethodIntegrate)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteTable(t *testing.T) {
	times, accel := constantBias(10, 0.1, 1)
	runs, err := Compare(context.Background(), times, accel, 0.1,
		[]estimator.Config{estimator.DefaultConfig(estimator.MethodIntegrate)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, runs))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Method"))
	assert.True(t, strings.HasPrefix(lines[1], "Integrated"))
}
