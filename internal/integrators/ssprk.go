package integrators

import (
	"fmt"
	"sort"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

// SSPRungeKutta is the strong-stability-preserving Runge-Kutta scheme
// with two or three stages, built from convex combinations of Euler
// sub-steps. Diagnostics come from the first sub-step.
type SSPRungeKutta struct {
	*TendencyStepper
	stages int
	step   fixedStep
}

// NewSSPRungeKutta builds the scheme with the given stage count (2 or
// 3) over the tendency sources.
func NewSSPRungeKutta(stages int, sources []contract.TendencySource, opts ...Option) (*SSPRungeKutta, error) {
	if stages != 2 && stages != 3 {
		return nil, fmt.Errorf("%w: got %d", ErrBadStages, stages)
	}
	s := &SSPRungeKutta{stages: stages}
	base, err := newBase("SSPRungeKutta", sources, buildConfig(opts), s)
	if err != nil {
		return nil, err
	}
	s.TendencyStepper = base
	return s, nil
}

func (s *SSPRungeKutta) advance(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	if err := s.step.check(dt); err != nil {
		return nil, nil, err
	}
	s1, diags, names, err := s.eulerSubStep(st, dt)
	if err != nil {
		return nil, nil, err
	}
	if s.stages == 2 {
		s2, _, _, err := s.eulerSubStep(s1, dt)
		if err != nil {
			return nil, nil, err
		}
		next, err := blendStates(st, 0.5, s2, 0.5, names)
		if err != nil {
			return nil, nil, err
		}
		return diags, next, nil
	}
	s15, _, _, err := s.eulerSubStep(s1, dt)
	if err != nil {
		return nil, nil, err
	}
	mid, err := blendStates(st, 0.75, s15, 0.25, names)
	if err != nil {
		return nil, nil, err
	}
	s25, _, _, err := s.eulerSubStep(substate(st, mid), dt)
	if err != nil {
		return nil, nil, err
	}
	next, err := blendStates(st, 1.0/3.0, s25, 2.0/3.0, names)
	if err != nil {
		return nil, nil, err
	}
	return diags, next, nil
}

// eulerSubStep advances one Euler step and wraps the result as a full
// state, so the next sub-step can evaluate tendencies against it.
func (s *SSPRungeKutta) eulerSubStep(st *state.State, dt time.Duration) (*state.State, map[string]*state.Quantity, []string, error) {
	tends, diags, err := s.source.TendenciesAt(st, dt)
	if err != nil {
		return nil, nil, nil, err
	}
	tends, err = convertTendencies(st, tends)
	if err != nil {
		return nil, nil, nil, err
	}
	stepped, err := eulerStep(st, tends, dt)
	if err != nil {
		return nil, nil, nil, err
	}
	names := make([]string, 0, len(stepped))
	for name := range stepped {
		names = append(names, name)
	}
	sort.Strings(names)
	return substate(st, stepped), diags, names, nil
}

func substate(base *state.State, stepped map[string]*state.Quantity) *state.State {
	sub := state.New(base.Time)
	for name, q := range stepped {
		sub.Set(name, q)
	}
	state.CopyUntouched(sub, base)
	return sub
}

// blendStates forms fa*a + fb*b for the named quantities, in a's
// units.
func blendStates(a *state.State, fa float64, b *state.State, fb float64, names []string) (map[string]*state.Quantity, error) {
	out := make(map[string]*state.Quantity, len(names))
	for _, name := range names {
		qa, okA := a.Get(name)
		qb, okB := b.Get(name)
		if !okA || !okB {
			return nil, fmt.Errorf("integrators: missing %q in sub-step state", name)
		}
		q, err := qa.Scaled(fa).AddScaled(qb, fb)
		if err != nil {
			return nil, err
		}
		out[name] = q
	}
	return out, nil
}
