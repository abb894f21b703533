package integrators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

func quantity(tb testing.TB, dims []string, unitstr string, shape []int, values []float64) *state.Quantity {
	tb.Helper()
	q, err := state.FromValues(dims, unitstr, shape, values)
	if err != nil {
		tb.Fatalf("FromValues: %v", err)
	}
	return q
}

func massState(tb testing.TB, unitstr string, values ...float64) *state.State {
	st := state.New(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	st.Set("mass", quantity(tb, []string{"x"}, unitstr, []int{len(values)}, values))
	return st
}

// advanceState rebuilds the model state from a stepper's next map.
func advanceState(st *state.State, next map[string]*state.Quantity, dt time.Duration) *state.State {
	out := state.New(st.Time.Add(dt))
	for name, q := range next {
		out.Set(name, q)
	}
	return out
}

// growthSource produces d(mass)/dt = rate * mass.
type growthSource struct {
	rate float64
}

func (g *growthSource) InputProperties() props.Properties {
	return props.Properties{"mass": {Dims: []string{"x"}, Units: "kg"}}
}

func (g *growthSource) TendencyProperties() props.Properties {
	return props.Properties{"mass": {Dims: []string{"x"}, Units: "kg s^-1"}}
}

func (g *growthSource) DiagnosticProperties() props.Properties { return props.Properties{} }

func (g *growthSource) TendenciesAt(st *state.State, _ time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	cur, ok := st.Get("mass")
	if !ok {
		return nil, nil, errors.New("no mass in state")
	}
	cur, err := cur.ToUnits("kg")
	if err != nil {
		return nil, nil, err
	}
	return map[string]*state.Quantity{
		"mass": cur.Scaled(g.rate).WithUnits("kg s^-1"),
	}, nil, nil
}

// constSource produces a fixed mass tendency, optionally with a
// diagnostic alongside.
type constSource struct {
	values []float64
	diag   bool
}

func (c *constSource) InputProperties() props.Properties {
	return props.Properties{"mass": {Dims: []string{"x"}, Units: "kg"}}
}

func (c *constSource) TendencyProperties() props.Properties {
	return props.Properties{"mass": {Dims: []string{"x"}, Units: "kg s^-1"}}
}

func (c *constSource) DiagnosticProperties() props.Properties {
	if !c.diag {
		return props.Properties{}
	}
	return props.Properties{"imbalance": {Dims: []string{"x"}, Units: "kg s^-1"}}
}

func (c *constSource) TendenciesAt(*state.State, time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	tq, err := state.FromValues([]string{"x"}, "kg s^-1", []int{len(c.values)}, append([]float64(nil), c.values...))
	if err != nil {
		return nil, nil, err
	}
	tends := map[string]*state.Quantity{"mass": tq}
	if !c.diag {
		return tends, nil, nil
	}
	dq, err := state.FromValues([]string{"x"}, "kg s^-1", []int{len(c.values)}, append([]float64(nil), c.values...))
	if err != nil {
		return nil, nil, err
	}
	return tends, map[string]*state.Quantity{"imbalance": dq}, nil
}

// oscillatorSource is the unit harmonic oscillator: dp/dt = v,
// dv/dt = -p.
type oscillatorSource struct{}

func (oscillatorSource) InputProperties() props.Properties {
	return props.Properties{
		"position": {Dims: []string{"x"}, Units: "m"},
		"velocity": {Dims: []string{"x"}, Units: "m s^-1"},
	}
}

func (oscillatorSource) TendencyProperties() props.Properties {
	return props.Properties{
		"position": {Dims: []string{"x"}, Units: "m s^-1"},
		"velocity": {Dims: []string{"x"}, Units: "m s^-2"},
	}
}

func (oscillatorSource) DiagnosticProperties() props.Properties { return props.Properties{} }

func (oscillatorSource) TendenciesAt(st *state.State, _ time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	pos, ok := st.Get("position")
	if !ok {
		return nil, nil, errors.New("no position in state")
	}
	vel, ok := st.Get("velocity")
	if !ok {
		return nil, nil, errors.New("no velocity in state")
	}
	pos, err := pos.ToUnits("m")
	if err != nil {
		return nil, nil, err
	}
	vel, err = vel.ToUnits("m s^-1")
	if err != nil {
		return nil, nil, err
	}
	return map[string]*state.Quantity{
		"position": vel.WithUnits("m s^-1"),
		"velocity": pos.Scaled(-1).WithUnits("m s^-2"),
	}, nil, nil
}

func oscillatorState(tb testing.TB) *state.State {
	st := state.New(time.Time{})
	st.Set("position", quantity(tb, []string{"x"}, "m", []int{1}, []float64{1}))
	st.Set("velocity", quantity(tb, []string{"x"}, "m s^-1", []int{1}, []float64{0}))
	return st
}

func TestForwardEulerStep(t *testing.T) {
	fe, err := NewForwardEuler([]contract.TendencySource{&constSource{values: []float64{3, 3}, diag: true}})
	if err != nil {
		t.Fatalf("NewForwardEuler: %v", err)
	}
	st := massState(t, "kg", 1, 2)
	st.Set("label", quantity(t, []string{"x"}, "", []int{1}, []float64{7}))
	diags, next, err := fe.Step(st, time.Second)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	mass := next["mass"]
	if mass == nil {
		t.Fatal("expected mass in the next state")
	}
	if mass.Units() != "kg" {
		t.Errorf("next units = %q, want %q", mass.Units(), "kg")
	}
	got := mass.Values()
	if got[0] != 4 || got[1] != 5 {
		t.Errorf("next mass = %v, want [4 5]", got)
	}
	if label := next["label"]; label == nil || label.Values()[0] != 7 {
		t.Errorf("expected the untouched quantity carried through, got %v", next["label"])
	}
	if im := diags["imbalance"]; im == nil || im.Values()[0] != 3 {
		t.Errorf("diagnostics = %v, want the source's imbalance", diags)
	}
	// the input state stays as it was
	if cur, _ := st.Get("mass"); cur.Values()[0] != 1 {
		t.Errorf("input state modified: mass = %v", cur.Values())
	}
}

func TestForwardEulerConvertsTendencyUnits(t *testing.T) {
	fe, err := NewForwardEuler([]contract.TendencySource{&growthSource{rate: 1}})
	if err != nil {
		t.Fatalf("NewForwardEuler: %v", err)
	}
	// state carries grams, the source declares kilograms
	st := massState(t, "g", 1000)
	_, next, err := fe.Step(st, time.Second)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	mass := next["mass"]
	if mass.Units() != "g" {
		t.Errorf("next units = %q, want %q", mass.Units(), "g")
	}
	if got := mass.Values()[0]; got != 2000 {
		t.Errorf("next mass = %v, want 2000", got)
	}
}

func TestForwardEulerDeclarations(t *testing.T) {
	fe, err := NewForwardEuler([]contract.TendencySource{&growthSource{rate: 1}})
	if err != nil {
		t.Fatalf("NewForwardEuler: %v", err)
	}
	if got := fe.Name(); got != "ForwardEuler" {
		t.Errorf("Name() = %q, want %q", got, "ForwardEuler")
	}
	in := fe.InputProperties()
	if p, ok := in["mass"]; !ok || p.Units != "kg" {
		t.Errorf("input declarations = %v, want mass in kg", in)
	}
	out := fe.OutputProperties()
	if p, ok := out["mass"]; !ok || p.Units != "kg" {
		t.Errorf("output declarations = %v, want mass in kg", out)
	}
	if dp := fe.DiagnosticProperties(); len(dp) != 0 {
		t.Errorf("diagnostic declarations = %v, want none", dp)
	}
}

func TestForwardEulerTendencyDiagnostics(t *testing.T) {
	fe, err := NewForwardEuler(
		[]contract.TendencySource{&growthSource{rate: 1}},
		WithName("euler"),
		WithTendenciesInDiagnostics(),
	)
	if err != nil {
		t.Fatalf("NewForwardEuler: %v", err)
	}
	const dn = "mass_tendency_from_euler"
	dp := fe.DiagnosticProperties()
	if p, ok := dp[dn]; !ok || p.Units != "kg s^-1" {
		t.Fatalf("diagnostic declarations = %v, want %s in kg s^-1", dp, dn)
	}
	diags, _, err := fe.Step(massState(t, "kg", 1, 2), time.Second)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	tq := diags[dn]
	if tq == nil {
		t.Fatalf("diagnostics = %v, want %s", diags, dn)
	}
	if tq.Units() != "kg s^-1" {
		t.Errorf("tendency units = %q, want %q", tq.Units(), "kg s^-1")
	}
	got := tq.Values()
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("realized tendency = %v, want [1 2]", got)
	}
}

func TestAdamsBashforthRampsUpOrder(t *testing.T) {
	ab, err := NewAdamsBashforth(3, []contract.TendencySource{&growthSource{rate: 1}})
	if err != nil {
		t.Fatalf("NewAdamsBashforth: %v", err)
	}
	st := massState(t, "kg", 1)
	// dy/dt = y with dt = 1s: Euler, then AB2, then AB3
	want := []float64{2, 4.5, 10.875}
	for i, w := range want {
		_, next, err := ab.Step(st, time.Second)
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		st = advanceState(st, next, time.Second)
		cur, _ := st.Get("mass")
		if got := cur.Values()[0]; math.Abs(got-w) > 1e-9 {
			t.Errorf("step %d: mass = %v, want %v", i+1, got, w)
		}
	}
}

func TestAdamsBashforthOrderRange(t *testing.T) {
	for _, order := range []int{0, 5} {
		_, err := NewAdamsBashforth(order, []contract.TendencySource{&growthSource{rate: 1}})
		if !errors.Is(err, ErrBadOrder) {
			t.Errorf("order %d: expected ErrBadOrder, got %v", order, err)
		}
	}
}

func TestSSPRungeKuttaExactForConstantRate(t *testing.T) {
	for _, stages := range []int{2, 3} {
		s, err := NewSSPRungeKutta(stages, []contract.TendencySource{&constSource{values: []float64{3}}})
		if err != nil {
			t.Fatalf("stages %d: %v", stages, err)
		}
		_, next, err := s.Step(massState(t, "kg", 10), 2*time.Second)
		if err != nil {
			t.Fatalf("stages %d: Step: %v", stages, err)
		}
		if got := next["mass"].Values()[0]; math.Abs(got-16) > 1e-9 {
			t.Errorf("stages %d: mass = %v, want 16", stages, got)
		}
	}
}

func TestAdamsBashforthConstantRate(t *testing.T) {
	// the coefficients at every order sum to one, so a constant rate
	// reproduces the Euler result
	for _, order := range []int{1, 2, 3, 4} {
		ab, err := NewAdamsBashforth(order, []contract.TendencySource{&constSource{values: []float64{2}}})
		if err != nil {
			t.Fatalf("order %d: %v", order, err)
		}
		st := massState(t, "kg", 1)
		for i := 0; i < 5; i++ {
			_, next, err := ab.Step(st, time.Second)
			if err != nil {
				t.Fatalf("order %d step %d: %v", order, i+1, err)
			}
			st = advanceState(st, next, time.Second)
		}
		cur, _ := st.Get("mass")
		if got := cur.Values()[0]; math.Abs(got-11) > 1e-9 {
			t.Errorf("order %d: mass after 5 steps = %v, want 11", order, got)
		}
	}
}

func TestSSPRungeKuttaStageFormula(t *testing.T) {
	// dy/dt = y from y0 = 1 with dt = 1s, stage blends evaluated by
	// hand
	cases := []struct {
		stages int
		want   float64
	}{
		{2, 2.5},
		{3, 8.0 / 3.0},
	}
	for _, tc := range cases {
		s, err := NewSSPRungeKutta(tc.stages, []contract.TendencySource{&growthSource{rate: 1}})
		if err != nil {
			t.Fatalf("stages %d: %v", tc.stages, err)
		}
		_, next, err := s.Step(massState(t, "kg", 1), time.Second)
		if err != nil {
			t.Fatalf("stages %d: Step: %v", tc.stages, err)
		}
		if got := next["mass"].Values()[0]; math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("stages %d: mass = %v, want %v", tc.stages, got, tc.want)
		}
	}
}

func TestSSPRungeKuttaStageCount(t *testing.T) {
	for _, stages := range []int{1, 4} {
		_, err := NewSSPRungeKutta(stages, []contract.TendencySource{&growthSource{rate: 1}})
		if !errors.Is(err, ErrBadStages) {
			t.Errorf("stages %d: expected ErrBadStages, got %v", stages, err)
		}
	}
}

func TestLeapfrogFilterWriteback(t *testing.T) {
	lf, err := NewLeapfrog([]contract.TendencySource{&growthSource{rate: 1}})
	if err != nil {
		t.Fatalf("NewLeapfrog: %v", err)
	}
	st := massState(t, "kg", 1)
	_, next, err := lf.Step(st, time.Second)
	if err != nil {
		t.Fatalf("first step: %v", err)
	}
	// first call is a plain Euler step
	if got := next["mass"].Values()[0]; got != 2 {
		t.Fatalf("first step mass = %v, want 2", got)
	}
	st = advanceState(st, next, time.Second)
	_, next, err = lf.Step(st, time.Second)
	if err != nil {
		t.Fatalf("second step: %v", err)
	}
	// new = old + 2*t*dt = 1 + 4 = 5, minus (1-alpha) of the filter
	// increment 0.05
	if got := next["mass"].Values()[0]; math.Abs(got-4.975) > 1e-9 {
		t.Errorf("second step mass = %v, want 4.975", got)
	}
	// the filter adjusts the current state in place
	cur, _ := st.Get("mass")
	if got := cur.Values()[0]; math.Abs(got-2.025) > 1e-9 {
		t.Errorf("filtered current mass = %v, want 2.025", got)
	}
}

func TestFixedTimestepEnforced(t *testing.T) {
	builders := map[string]func() (contract.Stepper, error){
		"AdamsBashforth": func() (contract.Stepper, error) {
			return NewAdamsBashforth(3, []contract.TendencySource{&growthSource{rate: 1}})
		},
		"SSPRungeKutta": func() (contract.Stepper, error) {
			return NewSSPRungeKutta(3, []contract.TendencySource{&growthSource{rate: 1}})
		},
		"Leapfrog": func() (contract.Stepper, error) {
			return NewLeapfrog([]contract.TendencySource{&growthSource{rate: 1}})
		},
	}
	for name, build := range builders {
		s, err := build()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		st := massState(t, "kg", 1)
		_, next, err := s.Step(st, time.Second)
		if err != nil {
			t.Fatalf("%s: first step: %v", name, err)
		}
		st = advanceState(st, next, time.Second)
		if _, _, err := s.Step(st, 2*time.Second); !errors.Is(err, ErrTimestepChanged) {
			t.Errorf("%s: expected ErrTimestepChanged, got %v", name, err)
		}
	}
}

func TestSchemeAccuracy(t *testing.T) {
	sources := func() []contract.TendencySource {
		return []contract.TendencySource{oscillatorSource{}}
	}
	cases := []struct {
		name  string
		build func() (contract.Stepper, error)
		tol   float64
	}{
		{"ForwardEuler", func() (contract.Stepper, error) { return NewForwardEuler(sources()) }, 2e-2},
		{"AdamsBashforth3", func() (contract.Stepper, error) { return NewAdamsBashforth(3, sources()) }, 1e-3},
		{"SSPRungeKutta3", func() (contract.Stepper, error) { return NewSSPRungeKutta(3, sources()) }, 1e-3},
		{"Leapfrog", func() (contract.Stepper, error) { return NewLeapfrog(sources()) }, 1e-3},
	}
	const (
		dt    = 10 * time.Millisecond
		steps = 100
	)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := tc.build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			st := oscillatorState(t)
			for i := 0; i < steps; i++ {
				_, next, err := s.Step(st, dt)
				if err != nil {
					t.Fatalf("step %d: %v", i+1, err)
				}
				st = advanceState(st, next, dt)
			}
			pos, _ := st.Get("position")
			vel, _ := st.Get("velocity")
			wantPos := math.Cos(1.0)
			wantVel := -math.Sin(1.0)
			if got := pos.Values()[0]; math.Abs(got-wantPos) > tc.tol {
				t.Errorf("position error too large: got %.6f, expected %.6f", got, wantPos)
			}
			if got := vel.Values()[0]; math.Abs(got-wantVel) > tc.tol {
				t.Errorf("velocity error too large: got %.6f, expected %.6f", got, wantVel)
			}
		})
	}
}
