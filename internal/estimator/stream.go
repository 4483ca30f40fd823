package estimator

import "iter"

// Stream emits one Record per input sample, in index order, starting with
// the defined initial record {0, 0, 0}. A Stream is single-pass: records
// already returned cannot be produced again. It is not safe for concurrent use.
type Stream struct {
	samples []float64
	stepper Stepper
	next    int
}

func newStream(samples []float64, stepper Stepper) *Stream {
	return &Stream{samples: samples, stepper: stepper}
}

// NewStream validates the input and configuration and returns a stream for
// the selected method. No record is produced when an error is returned.
func NewStream(samples []float64, dt float64, cfg Config) (*Stream, error) {
	if err := validateInput(samples, dt); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var s Stepper
	switch cfg.Method {
	case MethodIntegrate:
		s = NewTrapezoidState(samples[0], dt)
	case MethodHighPass:
		s = NewHighPassState(samples[0], dt, cfg.Alpha)
	case MethodKalman:
		s = NewZUPTState(dt, cfg.CorrectEvery, cfg.Kalman)
	}
	return newStream(samples, s), nil
}

// Next returns the next record, or false once every sample has been emitted.
func (s *Stream) Next() (Record, bool) {
	if s.next >= len(s.samples) {
		return Record{}, false
	}
	i := s.next
	s.next++
	if i == 0 {
		return Record{Index: 0}, true
	}
	v, d := s.stepper.Step(s.samples[i])
	return Record{Index: i, Velocity: v, Displacement: d}, true
}

// Len returns the total number of records the stream produces.
func (s *Stream) Len() int { return len(s.samples) }

// Remaining returns the number of records not yet emitted.
func (s *Stream) Remaining() int { return len(s.samples) - s.next }

// All returns an iterator over the remaining records. Stopping early leaves
// the stream positioned after the last record yielded.
func (s *Stream) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for {
			r, ok := s.Next()
			if !ok || !yield(r) {
				return
			}
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() []Record {
	out := make([]Record, 0, s.Remaining())
	for r := range s.All() {
		out = append(out, r)
	}
	return out
}

// Run validates, estimates, and returns every record for samples.
func Run(samples []float64, dt float64, cfg Config) ([]Record, error) {
	s, err := NewStream(samples, dt, cfg)
	if err != nil {
		return nil, err
	}
	return s.Collect(), nil
}

// Velocities extracts the velocity channel of records.
func Velocities(records []Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Velocity
	}
	return out
}

// Displacements extracts the displacement channel of records.
func Displacements(records []Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Displacement
	}
	return out
}
