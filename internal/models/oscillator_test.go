package models

import (
	"math"
	"testing"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/state"
)

func rawChain(tb testing.TB, pos, vel []float64) contract.RawState {
	tb.Helper()
	p, err := ndarray.FromSlice(pos, len(pos))
	if err != nil {
		tb.Fatalf("FromSlice: %v", err)
	}
	v, err := ndarray.FromSlice(vel, len(vel))
	if err != nil {
		tb.Fatalf("FromSlice: %v", err)
	}
	return contract.RawState{Arrays: contract.RawFields{"position": p, "velocity": v}}
}

func TestOscillatorRestingChain(t *testing.T) {
	o := NewOscillator()
	tends, _, err := o.Compute(rawChain(t, []float64{0, 0, 0}, []float64{0, 0, 0}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, name := range []string{"position", "velocity"} {
		for i, v := range tends[name].Data() {
			if v != 0 {
				t.Errorf("%s tendency[%d] = %v at rest", name, i, v)
			}
		}
	}
}

func TestOscillatorCoupling(t *testing.T) {
	o := NewOscillator()
	tends, _, err := o.Compute(rawChain(t, []float64{1, 0, 0}, []float64{0, 0, 0}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := []float64{-2, 1, 0}
	for i, w := range want {
		if got := tends["velocity"].Data()[i]; math.Abs(got-w) > 1e-12 {
			t.Errorf("acceleration[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestOscillatorDamping(t *testing.T) {
	o := NewOscillator()
	o.Damping = 0.5
	tends, _, err := o.Compute(rawChain(t, []float64{0}, []float64{2}))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := tends["position"].Data()[0]; got != 2 {
		t.Errorf("position tendency = %v, want 2", got)
	}
	if got := tends["velocity"].Data()[0]; math.Abs(got-(-1)) > 1e-12 {
		t.Errorf("velocity tendency = %v, want -1", got)
	}
}

func TestEnergyDiagnostic(t *testing.T) {
	diag, err := contract.NewDiagnosticComponent(NewEnergyDiagnostic())
	if err != nil {
		t.Fatalf("NewDiagnosticComponent: %v", err)
	}
	st := state.New(time.Time{})
	st.Set("position", quantity(t, []string{"mode"}, "m", []int{2}, []float64{1, 0}))
	st.Set("velocity", quantity(t, []string{"mode"}, "m s^-1", []int{2}, []float64{0, 2}))
	diags, err := diag.Diagnostics(st)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	e := diags[TotalEnergyName]
	if e == nil {
		t.Fatalf("diagnostics = %v, want %s", diags, TotalEnergyName)
	}
	if e.Units() != "J" {
		t.Errorf("energy units = %q, want J", e.Units())
	}
	if e.Rank() != 0 {
		t.Errorf("energy rank = %d, want a scalar", e.Rank())
	}
	// kinetic 2 J plus springs (1-0)^2/2 + (0-1)^2/2 = 1 J
	if got := e.Values()[0]; math.Abs(got-3) > 1e-12 {
		t.Errorf("energy = %v, want 3", got)
	}
}
