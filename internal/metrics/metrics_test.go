package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/san-kum/fieldsim/internal/state"
)

func observedState(t *testing.T, values ...float64) *state.State {
	t.Helper()
	st := state.New(time.Time{})
	q, err := state.FromValues([]string{"x"}, "kg", []int{len(values)}, values)
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	st.Set("mass", q)
	return st
}

func TestRangeTracksExtremes(t *testing.T) {
	r := NewRange("mass")
	r.Observe(0, observedState(t, 3, 5))
	r.Observe(1, observedState(t, 1, 7))

	if got := r.Min(); got != 1 {
		t.Errorf("min = %v, want 1", got)
	}
	if got := r.Max(); got != 7 {
		t.Errorf("max = %v, want 7", got)
	}
	if got := r.Mean(); math.Abs(got-4) > 1e-12 {
		t.Errorf("mean = %v, want 4", got)
	}
}

func TestRangeMissingQuantity(t *testing.T) {
	r := NewRange("volume")
	r.Observe(0, observedState(t, 3))
	if got := r.Mean(); got != 0 {
		t.Errorf("mean = %v, want 0 with nothing observed", got)
	}
}

func TestRangeReset(t *testing.T) {
	r := NewRange("mass")
	r.Observe(0, observedState(t, -5, 9))
	r.Reset()
	r.Observe(0, observedState(t, 2))
	if r.Min() != 2 || r.Max() != 2 {
		t.Errorf("after reset min/max = %v/%v, want 2/2", r.Min(), r.Max())
	}
}

func TestDriftAgainstFirstStep(t *testing.T) {
	d := NewDrift("mass")
	d.Observe(0, observedState(t, 6, 4))
	d.Observe(1, observedState(t, 6, 4))
	if got := d.Value(); got != 0 {
		t.Errorf("drift = %v, want 0 for a conserved total", got)
	}
	d.Observe(2, observedState(t, 5, 4))
	if got := d.Value(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("drift = %v, want 0.1", got)
	}
	// drift keeps its maximum even if the total recovers
	d.Observe(3, observedState(t, 6, 4))
	if got := d.Value(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("drift after recovery = %v, want 0.1", got)
	}
}

func TestDriftZeroInitial(t *testing.T) {
	d := NewDrift("mass")
	d.Observe(0, observedState(t, 0))
	d.Observe(1, observedState(t, 3))
	if got := d.Value(); got != 0 {
		t.Errorf("drift = %v, want 0 when the initial total is zero", got)
	}
}
