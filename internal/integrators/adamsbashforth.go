package integrators

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

// abCoefficients holds the Adams-Bashforth weights, most recent
// evaluation first.
var abCoefficients = map[int][]float64{
	1: {1},
	2: {3.0 / 2.0, -1.0 / 2.0},
	3: {23.0 / 12.0, -4.0 / 3.0, 5.0 / 12.0},
	4: {55.0 / 24.0, -59.0 / 24.0, 37.0 / 24.0, -3.0 / 8.0},
}

// AdamsBashforth is the explicit multi-step scheme of the given order.
// It keeps the last evaluations of the tendencies and therefore
// requires a constant interval; the first steps ramp up through the
// lower orders until enough history exists.
type AdamsBashforth struct {
	*TendencyStepper
	order   int
	step    fixedStep
	history []map[string]*state.Quantity
}

// NewAdamsBashforth builds the scheme of the given order (1 to 4) over
// the tendency sources.
func NewAdamsBashforth(order int, sources []contract.TendencySource, opts ...Option) (*AdamsBashforth, error) {
	if order < 1 || order > 4 {
		return nil, fmt.Errorf("%w: got %d", ErrBadOrder, order)
	}
	s := &AdamsBashforth{order: order}
	base, err := newBase("AdamsBashforth", sources, buildConfig(opts), s)
	if err != nil {
		return nil, err
	}
	s.TendencyStepper = base
	return s, nil
}

func (s *AdamsBashforth) advance(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	if err := s.step.check(dt); err != nil {
		return nil, nil, err
	}
	tends, diags, err := s.source.TendenciesAt(st, dt)
	if err != nil {
		return nil, nil, err
	}
	tends, err = convertTendencies(st, tends)
	if err != nil {
		return nil, nil, err
	}
	s.push(tends)
	blended, err := s.blend()
	if err != nil {
		return nil, nil, err
	}
	next, err := eulerStep(st, blended, dt)
	if err != nil {
		return nil, nil, err
	}
	return diags, next, nil
}

func (s *AdamsBashforth) push(tends map[string]*state.Quantity) {
	s.history = append([]map[string]*state.Quantity{tends}, s.history...)
	if len(s.history) > s.order {
		s.history = s.history[:s.order]
	}
}

// blend forms the weighted tendency of the effective order, which is
// the available history length during the startup ramp.
func (s *AdamsBashforth) blend() (map[string]*state.Quantity, error) {
	coeffs := abCoefficients[len(s.history)]
	latest := s.history[0]
	out := make(map[string]*state.Quantity, len(latest))
	for name, tq := range latest {
		acc := tq.Scaled(coeffs[0])
		for i := 1; i < len(s.history); i++ {
			past, ok := s.history[i][name]
			if !ok {
				return nil, fmt.Errorf("integrators: no stored tendency for %q at age %d", name, i)
			}
			var err error
			acc, err = acc.AddScaled(past, coeffs[i])
			if err != nil {
				return nil, err
			}
		}
		out[name] = acc
	}
	return out, nil
}
