package integrators

import (
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

// ForwardEuler is the first-order explicit scheme:
// new = current + tendency*dt. It keeps no memory, so the interval may
// vary between steps.
type ForwardEuler struct {
	*TendencyStepper
}

// NewForwardEuler builds the scheme over the given tendency sources.
func NewForwardEuler(sources []contract.TendencySource, opts ...Option) (*ForwardEuler, error) {
	s := &ForwardEuler{}
	base, err := newBase("ForwardEuler", sources, buildConfig(opts), s)
	if err != nil {
		return nil, err
	}
	s.TendencyStepper = base
	return s, nil
}

func (s *ForwardEuler) advance(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	tends, diags, err := s.source.TendenciesAt(st, dt)
	if err != nil {
		return nil, nil, err
	}
	tends, err = convertTendencies(st, tends)
	if err != nil {
		return nil, nil, err
	}
	next, err := eulerStep(st, tends, dt)
	if err != nil {
		return nil, nil, err
	}
	return diags, next, nil
}
