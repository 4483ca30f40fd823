package estimator

// ZUPTState is a scalar Kalman filter over velocity. Every correctEvery
// samples it applies a zero-velocity measurement; displacement is only ever
// predicted from kinematics, so it benefits from the correction indirectly
// through the velocity it integrates.
//
// The periodic update assumes the motion returns to rest at a known cadence,
// as chest compressions do between strokes. Continuously moving signals will
// be biased towards zero velocity.
type ZUPTState struct {
	dt           float64
	correctEvery int
	step         int

	velocity     float64
	displacement float64

	p11 float64
	// p22 and q22 belong to a position covariance that the correction never
	// reads. They are propagated so the state mirrors a two-state filter.
	p22 float64
	q11 float64
	q22 float64
	r   float64
}

// NewZUPTState returns a filter at rest with the given noise model.
func NewZUPTState(dt float64, correctEvery int, p KalmanParams) *ZUPTState {
	return &ZUPTState{
		dt:           dt,
		correctEvery: correctEvery,
		p11:          p.P11,
		p22:          p.P22,
		q11:          p.Q11,
		q22:          p.Q22,
		r:            p.R,
	}
}

// Step predicts with the sample, propagates covariance, and applies a
// zero-velocity correction when the step count is a multiple of correctEvery.
func (s *ZUPTState) Step(accel float64) (velocity, displacement float64) {
	s.step++
	dt := s.dt

	vPred := s.velocity + accel*dt
	dPred := s.displacement + s.velocity*dt + 0.5*accel*dt*dt

	s.p11 += s.q11
	s.p22 += s.q22

	if s.step%s.correctEvery == 0 {
		k := s.p11 / (s.p11 + s.r)
		s.velocity = vPred + k*(0-vPred)
		s.p11 = (1 - k) * s.p11
	} else {
		s.velocity = vPred
	}
	s.displacement = dPred

	return s.velocity, s.displacement
}

// Covariance returns the current velocity error covariance.
func (s *ZUPTState) Covariance() float64 { return s.p11 }

// Corrected reports whether the most recent Step applied a zero-velocity update.
func (s *ZUPTState) Corrected() bool {
	return s.step > 0 && s.step%s.correctEvery == 0
}

// Kalman returns a stream of ZUPT-corrected estimates.
func Kalman(samples []float64, dt float64, correctEvery int, p KalmanParams) (*Stream, error) {
	if err := validateInput(samples, dt); err != nil {
		return nil, err
	}
	cfg := Config{Method: MethodKalman, CorrectEvery: correctEvery, Kalman: p}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newStream(samples, NewZUPTState(dt, correctEvery, p)), nil
}
