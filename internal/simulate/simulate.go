// Package simulate generates synthetic chest-compression acceleration
// profiles with known velocity and displacement, for demos and for checking
// the estimators against ground truth.
package simulate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/fsutil"
	"github.com/banshee-data/displacement.report/internal/profile"
	"github.com/banshee-data/displacement.report/internal/units"
)

// Config describes a synthetic profile. Accelerations are in mm/s².
type Config struct {
	PeakAccel            float64 // amplitude of each compression
	RateHz               float64 // compressions per second
	Duration             float64 // seconds
	SampleRate           float64 // Hz
	CompressionsPerCycle int     // compressions before a pause; 0 disables pauses
	Pause                float64 // seconds at rest between cycles
	Bias                 float64 // constant sensor offset added to the measurement
	NoiseStd             float64 // white measurement noise
	Seed                 uint64
}

// DefaultConfig returns a 10 s, 100 Hz profile at 110 compressions per
// minute with a 30:2 style pause, for the given peak label in cm/s².
func DefaultConfig(peakCMPS2 float64) Config {
	return Config{
		PeakAccel:            peakCMPS2 * 10,
		RateHz:               110.0 / 60.0,
		Duration:             10,
		SampleRate:           100,
		CompressionsPerCycle: 30,
		Pause:                2,
		Seed:                 1,
	}
}

// Validate checks that the profile can be sampled.
func (c Config) Validate() error {
	switch {
	case !(c.PeakAccel > 0):
		return fmt.Errorf("%w: peak acceleration must be positive, got %v", estimator.ErrInvalidConfig, c.PeakAccel)
	case !(c.RateHz > 0):
		return fmt.Errorf("%w: compression rate must be positive, got %v", estimator.ErrInvalidConfig, c.RateHz)
	case !(c.Duration > 0):
		return fmt.Errorf("%w: duration must be positive, got %v", estimator.ErrInvalidConfig, c.Duration)
	case !(c.SampleRate > 2*c.RateHz):
		return fmt.Errorf("%w: sample rate %v Hz is below the Nyquist rate for %v Hz", estimator.ErrInvalidConfig, c.SampleRate, c.RateHz)
	case c.CompressionsPerCycle < 0 || c.Pause < 0:
		return fmt.Errorf("%w: pause settings must not be negative", estimator.ErrInvalidConfig)
	case c.NoiseStd < 0:
		return fmt.Errorf("%w: noise std must not be negative, got %v", estimator.ErrInvalidConfig, c.NoiseStd)
	}
	return nil
}

// Profile is a generated acceleration trace with its exact kinematics.
type Profile struct {
	Samples      *profile.Samples
	Velocity     []float64 // mm/s, noise free
	Displacement []float64 // mm, noise free
}

// Generate samples the profile described by cfg. Each compression follows
// a(τ) = A cos ωτ, so velocity and displacement return to zero at the end of
// every compression.
func Generate(cfg Config) (*Profile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := int(math.Round(cfg.Duration*cfg.SampleRate)) + 1
	dt := 1 / cfg.SampleRate
	omega := 2 * math.Pi * cfg.RateHz
	period := 1 / cfg.RateHz
	active := math.Inf(1)
	cycle := math.Inf(1)
	if cfg.CompressionsPerCycle > 0 && cfg.Pause > 0 {
		active = float64(cfg.CompressionsPerCycle) * period
		cycle = active + cfg.Pause
	}

	var noise *distuv.Normal
	if cfg.NoiseStd > 0 {
		noise = &distuv.Normal{
			Mu:    0,
			Sigma: cfg.NoiseStd,
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15),
		}
	}

	p := &Profile{
		Samples: &profile.Samples{
			Time:   make([]float64, n),
			Accel:  make([]float64, n),
			DT:     dt,
			Unit:   units.MMPS2,
			Column: profile.ColAccelMM,
		},
		Velocity:     make([]float64, n),
		Displacement: make([]float64, n),
	}

	A := cfg.PeakAccel
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		p.Samples.Time[i] = t

		u := t
		if !math.IsInf(cycle, 1) {
			u = math.Mod(t, cycle)
		}
		var a, v, x float64
		if u < active {
			wt := omega * math.Mod(u, period)
			a = A * math.Cos(wt)
			v = A / omega * math.Sin(wt)
			x = A / (omega * omega) * (1 - math.Cos(wt))
		}

		p.Velocity[i] = v
		p.Displacement[i] = x
		p.Samples.Accel[i] = a + cfg.Bias
		if noise != nil {
			p.Samples.Accel[i] += noise.Rand()
		}
	}
	return p, nil
}

// FileName returns the conventional profile name for a peak label in cm/s²,
// e.g. cpr_profile_12cmps2.csv.
func FileName(peakCMPS2 float64) string {
	return "cpr_profile_" + strconv.FormatFloat(peakCMPS2, 'f', -1, 64) + "cmps2.csv"
}

// WriteFile generates a profile for the given peak and writes it into dir
// under FileName. The written path is returned.
func WriteFile(fsys fsutil.FileSystem, dir string, peakCMPS2 float64, cfg Config) (string, *Profile, error) {
	p, err := Generate(cfg)
	if err != nil {
		return "", nil, err
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(peakCMPS2))
	p.Samples.Path = path
	if err := profile.WriteProfile(fsys, path, p.Samples); err != nil {
		return "", nil, err
	}
	return path, p, nil
}
