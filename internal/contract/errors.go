package contract

import "errors"

var (
	// ErrMissingQuantity is returned when the input state lacks
	// quantities the component declared.
	ErrMissingQuantity = errors.New("contract: missing quantity")

	// ErrMissingOutput is returned when a kernel omits results it
	// declared.
	ErrMissingOutput = errors.New("contract: missing output")

	// ErrUnexpectedOutput is returned when a kernel produces results it
	// never declared.
	ErrUnexpectedOutput = errors.New("contract: unexpected output")

	// ErrShapeMismatch is returned when a kernel result's shape does not
	// match what its declaration resolves to for the current state.
	ErrShapeMismatch = errors.New("contract: shape mismatch")

	// ErrTendencyNameCollision is returned when a synthesized tendency
	// diagnostic would collide with an existing diagnostic name.
	ErrTendencyNameCollision = errors.New("contract: tendency diagnostic name collision")
)
