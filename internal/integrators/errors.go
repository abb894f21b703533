package integrators

import "errors"

var (
	// ErrBadOrder is returned for Adams-Bashforth orders outside 1..4.
	ErrBadOrder = errors.New("integrators: order must be between 1 and 4")

	// ErrBadStages is returned for Runge-Kutta stage counts other than
	// 2 or 3.
	ErrBadStages = errors.New("integrators: stages must be 2 or 3")

	// ErrTimestepChanged is returned when a scheme with memory is
	// stepped with a different interval than before.
	ErrTimestepChanged = errors.New("integrators: timestep changed between steps")
)
