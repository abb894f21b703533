package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

func massState(tb testing.TB, values ...float64) *state.State {
	tb.Helper()
	st := state.New(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	q, err := state.FromValues([]string{"x"}, "kg", []int{len(values)}, values)
	if err != nil {
		tb.Fatalf("FromValues: %v", err)
	}
	st.Set("mass", q)
	return st
}

// halvingStepper halves the mass each step and reports how many
// steps it has taken as a diagnostic.
type halvingStepper struct {
	calls int
	fail  bool
}

func (h *halvingStepper) InputProperties() props.Properties {
	return props.Properties{"mass": {Dims: []string{"x"}, Units: "kg"}}
}

func (h *halvingStepper) OutputProperties() props.Properties {
	return props.Properties{"mass": {Dims: []string{"x"}, Units: "kg"}}
}

func (h *halvingStepper) DiagnosticProperties() props.Properties {
	return props.Properties{"halvings": {Dims: []string{}, Units: ""}}
}

func (h *halvingStepper) Step(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	if h.fail {
		return nil, nil, errors.New("broken stepper")
	}
	h.calls++
	cur, ok := st.Get("mass")
	if !ok {
		return nil, nil, errors.New("no mass in state")
	}
	dq, err := state.FromValues([]string{}, "", []int{}, []float64{float64(h.calls)})
	if err != nil {
		return nil, nil, err
	}
	return map[string]*state.Quantity{"halvings": dq},
		map[string]*state.Quantity{"mass": cur.Scaled(0.5)}, nil
}

type recordingObserver struct {
	steps []int
	seen  []*state.State
}

func (r *recordingObserver) Observe(step int, st *state.State) {
	r.steps = append(r.steps, step)
	r.seen = append(r.seen, st)
}

func TestRunnerRun(t *testing.T) {
	st := massState(t, 16)
	label, err := state.FromValues([]string{}, "", []int{}, []float64{7})
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	st.Set("label", label)

	r := Runner{Stepper: &halvingStepper{}}
	result, err := r.Run(context.Background(), st, Config{Dt: time.Second, Steps: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Steps != 3 {
		t.Errorf("steps = %d, want 3", result.Steps)
	}
	mass, _ := result.Final.Get("mass")
	if got := mass.Values()[0]; got != 2 {
		t.Errorf("final mass = %v, want 2", got)
	}
	if !result.Final.Has("label") {
		t.Error("untouched quantity dropped from the final state")
	}
	wantTime := st.Time.Add(3 * time.Second)
	if !result.Final.Time.Equal(wantTime) {
		t.Errorf("final time = %v, want %v", result.Final.Time, wantTime)
	}
	// the caller's initial state is left alone
	if cur, _ := st.Get("mass"); cur.Values()[0] != 16 {
		t.Errorf("initial state modified: mass = %v", cur.Values())
	}
}

func TestRunnerObservers(t *testing.T) {
	obs := &recordingObserver{}
	r := Runner{Stepper: &halvingStepper{}}
	r.AddObserver(obs)
	_, err := r.Run(context.Background(), massState(t, 16), Config{Dt: time.Second, Steps: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(obs.steps) != 3 {
		t.Fatalf("observed %d steps, want 3", len(obs.steps))
	}
	for i, s := range obs.steps {
		if s != i {
			t.Errorf("observation %d has step %d", i, s)
		}
	}
	// observers see the pre-step state with diagnostics merged
	first := obs.seen[0]
	if mass, _ := first.Get("mass"); mass.Values()[0] != 16 {
		t.Errorf("first observation mass = %v, want 16", mass.Values())
	}
	if !first.Has("halvings") {
		t.Error("diagnostics not merged into the observed state")
	}
}

func TestRunnerInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Steps: 10}},
		{"negative dt", Config{Dt: -time.Second, Steps: 10}},
		{"zero steps", Config{Dt: time.Second, Steps: 0}},
		{"negative steps", Config{Dt: time.Second, Steps: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Runner{Stepper: &halvingStepper{}}
			if _, err := r.Run(context.Background(), massState(t, 1), tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRunnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Runner{Stepper: &halvingStepper{}}
	result, err := r.Run(ctx, massState(t, 16), Config{Dt: time.Second, Steps: 1000})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Steps != 0 {
		t.Errorf("steps = %d, want 0", result.Steps)
	}
}

func TestRunnerStepError(t *testing.T) {
	r := Runner{Stepper: &halvingStepper{fail: true}}
	_, err := r.Run(context.Background(), massState(t, 16), Config{Dt: time.Second, Steps: 5})
	if err == nil || !strings.Contains(err.Error(), "step 0") {
		t.Fatalf("expected a step error, got %v", err)
	}
}

func TestRunEnsemble(t *testing.T) {
	members := make([]*state.State, 5)
	for i := range members {
		members[i] = massState(t, float64(4*(i+1)))
	}
	newStepper := func() (contract.Stepper, error) { return &halvingStepper{}, nil }
	results, err := RunEnsemble(context.Background(), members, Config{Dt: time.Second, Steps: 2}, newStepper)
	if err != nil {
		t.Fatalf("RunEnsemble: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i, res := range results {
		mass, _ := res.Final.Get("mass")
		want := float64(i + 1)
		if got := mass.Values()[0]; got != want {
			t.Errorf("member %d: final mass = %v, want %v", i, got, want)
		}
	}
}

func TestRunEnsembleStepperError(t *testing.T) {
	members := []*state.State{massState(t, 1)}
	newStepper := func() (contract.Stepper, error) { return nil, errors.New("no stepper") }
	if _, err := RunEnsemble(context.Background(), members, Config{Dt: time.Second, Steps: 1}, newStepper); err == nil {
		t.Fatal("expected the constructor error to surface")
	}
}
