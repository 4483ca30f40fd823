// Package estimator turns a uniformly sampled acceleration signal into
// velocity and displacement estimates.
//
// Three estimators are provided: plain trapezoidal double integration, the
// same integration followed by a first-order high-pass filter on the
// displacement channel, and a scalar Kalman filter over velocity that applies
// periodic zero-velocity updates (ZUPT). Each estimator keeps its registers in
// an explicit state struct whose Step method advances it by one sample; a
// Stream drives a state struct over a sample slice and emits one Record per
// input sample.
//
// Input is validated eagerly when a Stream is built. Once streaming starts no
// error is raised: NaN or Inf samples propagate into the output unchanged.
package estimator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput reports an empty sample slice or a non-positive time step.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig reports an estimator parameter outside its valid range.
	ErrInvalidConfig = errors.New("invalid config")
)

// Record is one estimator output, emitted once per input sample.
// For the high-pass estimator Displacement holds the filtered displacement.
type Record struct {
	Index        int
	Velocity     float64
	Displacement float64
}

// Stepper advances an estimator by one acceleration sample and returns the
// new velocity and displacement. The first sample of a run is consumed by the
// constructor, so Step is called for samples 1..N-1 only.
type Stepper interface {
	Step(accel float64) (velocity, displacement float64)
}

// Default tuning values.
const (
	DefaultAlpha        = 0.995
	DefaultCorrectEvery = 5

	DefaultP11 = 1e-4
	DefaultP22 = 1e-4
	DefaultQ11 = 5e-6
	DefaultQ22 = 1e-6
	DefaultR   = 1e-4
)

// KalmanParams holds the noise model of the ZUPT filter. P22 and Q22 are
// carried through propagation but never read by the correction.
type KalmanParams struct {
	P11 float64
	P22 float64
	Q11 float64
	Q22 float64
	R   float64
}

// DefaultKalmanParams returns noise terms that trust the zero-velocity
// measurement heavily and assume low process noise.
func DefaultKalmanParams() KalmanParams {
	return KalmanParams{
		P11: DefaultP11,
		P22: DefaultP22,
		Q11: DefaultQ11,
		Q22: DefaultQ22,
		R:   DefaultR,
	}
}

// Validate checks the noise terms.
func (p KalmanParams) Validate() error {
	if !(p.P11 > 0) || math.IsInf(p.P11, 0) {
		return fmt.Errorf("%w: initial velocity covariance p11 must be positive, got %v", ErrInvalidConfig, p.P11)
	}
	if p.P22 < 0 || math.IsNaN(p.P22) {
		return fmt.Errorf("%w: p22 must be non-negative, got %v", ErrInvalidConfig, p.P22)
	}
	if p.Q11 < 0 || math.IsNaN(p.Q11) {
		return fmt.Errorf("%w: process noise q11 must be non-negative, got %v", ErrInvalidConfig, p.Q11)
	}
	if p.Q22 < 0 || math.IsNaN(p.Q22) {
		return fmt.Errorf("%w: q22 must be non-negative, got %v", ErrInvalidConfig, p.Q22)
	}
	if !(p.R > 0) || math.IsInf(p.R, 0) {
		return fmt.Errorf("%w: measurement noise r must be positive, got %v", ErrInvalidConfig, p.R)
	}
	return nil
}

// Config selects an estimator and carries its parameters. Only the
// parameters of the selected Method are validated and used.
type Config struct {
	Method       Method
	Alpha        float64
	CorrectEvery int
	Kalman       KalmanParams
}

// DefaultConfig returns a Config for the given method with default parameters.
func DefaultConfig(m Method) Config {
	return Config{
		Method:       m,
		Alpha:        DefaultAlpha,
		CorrectEvery: DefaultCorrectEvery,
		Kalman:       DefaultKalmanParams(),
	}
}

// Validate checks the parameters used by the selected method.
func (c Config) Validate() error {
	switch c.Method {
	case MethodIntegrate:
		return nil
	case MethodHighPass:
		return validateAlpha(c.Alpha)
	case MethodKalman:
		if c.CorrectEvery < 1 {
			return fmt.Errorf("%w: correct_every must be at least 1, got %d", ErrInvalidConfig, c.CorrectEvery)
		}
		return c.Kalman.Validate()
	default:
		return fmt.Errorf("%w: unknown method %d", ErrInvalidConfig, int(c.Method))
	}
}

func validateAlpha(alpha float64) error {
	if !(alpha > 0 && alpha <= 1) {
		return fmt.Errorf("%w: alpha must be in (0, 1], got %v", ErrInvalidConfig, alpha)
	}
	return nil
}

func validateInput(samples []float64, dt float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: empty acceleration sequence", ErrInvalidInput)
	}
	if !(dt > 0) || math.IsInf(dt, 1) {
		return fmt.Errorf("%w: time step must be positive and finite, got %v", ErrInvalidInput, dt)
	}
	return nil
}
