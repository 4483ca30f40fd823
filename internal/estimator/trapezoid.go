package estimator

// TrapezoidState holds the registers of trapezoidal double integration:
// acceleration to velocity, then velocity to displacement.
type TrapezoidState struct {
	dt           float64
	velocity     float64
	displacement float64
	prevAccel    float64
	prevVelocity float64
}

// NewTrapezoidState seeds the integrator with the first sample. Velocity and
// displacement start at zero.
func NewTrapezoidState(firstAccel, dt float64) *TrapezoidState {
	return &TrapezoidState{dt: dt, prevAccel: firstAccel}
}

// Step integrates one sample.
func (s *TrapezoidState) Step(accel float64) (velocity, displacement float64) {
	s.velocity += 0.5 * (accel + s.prevAccel) * s.dt
	s.displacement += 0.5 * (s.velocity + s.prevVelocity) * s.dt
	s.prevAccel = accel
	s.prevVelocity = s.velocity
	return s.velocity, s.displacement
}

// Integrate returns a stream of plain double integration over samples.
func Integrate(samples []float64, dt float64) (*Stream, error) {
	if err := validateInput(samples, dt); err != nil {
		return nil, err
	}
	return newStream(samples, NewTrapezoidState(samples[0], dt)), nil
}
