package testutil

import (
	"testing"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertFloatsNear(t *testing.T) {
	t.Parallel()
	AssertFloatsNear(t, []float64{1, 2.0000001}, []float64{1, 2}, 1e-6)
}

func TestConstantAndTimes(t *testing.T) {
	t.Parallel()

	c := Constant(3, 9.5)
	if len(c) != 3 || c[0] != 9.5 || c[2] != 9.5 {
		t.Errorf("Constant() = %v", c)
	}

	ts := Times(4, 0.5)
	want := []float64{0, 0.5, 1, 1.5}
	for i := range want {
		if ts[i] != want[i] {
			t.Errorf("Times()[%d] = %v, want %v", i, ts[i], want[i])
		}
	}
}

func TestProfileCSV(t *testing.T) {
	t.Parallel()

	got := ProfileCSV([]float64{0, 0.01}, []float64{0, 1250.5})
	want := "Time (s),Acceleration_mm_s2\n0,0\n0.01,1250.5\n"
	if got != want {
		t.Errorf("ProfileCSV() = %q, want %q", got, want)
	}
}
