package estimator

// HighPassState integrates like TrapezoidState and then removes drift from
// the displacement channel with a first-order high-pass filter:
//
//	filtered[i] = alpha * (filtered[i-1] + raw[i] - raw[i-1])
//
// Alpha close to 1 keeps more low-frequency content. With alpha == 1 the
// filtered output equals the raw displacement.
type HighPassState struct {
	raw          TrapezoidState
	alpha        float64
	prevDisp     float64
	prevFiltered float64
}

// NewHighPassState seeds the filter with the first sample.
func NewHighPassState(firstAccel, dt, alpha float64) *HighPassState {
	return &HighPassState{
		raw:   TrapezoidState{dt: dt, prevAccel: firstAccel},
		alpha: alpha,
	}
}

// Step integrates one sample and returns the velocity with the filtered
// displacement. The raw displacement is not exposed.
func (s *HighPassState) Step(accel float64) (velocity, displacement float64) {
	v, d := s.raw.Step(accel)
	filtered := s.alpha * (s.prevFiltered + d - s.prevDisp)
	s.prevDisp = d
	s.prevFiltered = filtered
	return v, filtered
}

// HighPassFilter returns a stream of drift-filtered double integration.
func HighPassFilter(samples []float64, dt, alpha float64) (*Stream, error) {
	if err := validateInput(samples, dt); err != nil {
		return nil, err
	}
	if err := validateAlpha(alpha); err != nil {
		return nil, err
	}
	return newStream(samples, NewHighPassState(samples[0], dt, alpha)), nil
}
