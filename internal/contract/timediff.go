package contract

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

// TimeDifferencing adapts a Stepper into a TendencySource by
// first-order differencing of the stepped quantities over the
// interval. Useful for driving schemes that want rates from a
// component that only knows how to step itself.
type TimeDifferencing struct {
	stepper Stepper
}

// NewTimeDifferencing wraps s.
func NewTimeDifferencing(s Stepper) *TimeDifferencing {
	return &TimeDifferencing{stepper: s}
}

func (w *TimeDifferencing) InputProperties() props.Properties {
	return w.stepper.InputProperties()
}

// TendencyProperties mirrors the stepper's outputs as per-second
// rates.
func (w *TimeDifferencing) TendencyProperties() props.Properties {
	out := props.Properties{}
	for name, p := range w.stepper.OutputProperties() {
		p.Units = units.TendencyUnits(p.Units)
		out[name] = p
	}
	return out
}

func (w *TimeDifferencing) DiagnosticProperties() props.Properties {
	return w.stepper.DiagnosticProperties()
}

// TendenciesAt steps the wrapped component and differences its
// outputs: (new - old) / dt, in the output's units per second. Every
// stepped quantity must already be in the input state.
func (w *TimeDifferencing) TendenciesAt(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	diags, next, err := w.stepper.Step(st, dt)
	if err != nil {
		return nil, nil, err
	}
	secs := dt.Seconds()
	outs := w.stepper.OutputProperties()
	tends := make(map[string]*state.Quantity, len(outs))
	for _, name := range outs.Names() {
		newQ, ok := next[name]
		if !ok {
			continue
		}
		old, ok := st.Get(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q was stepped but is not in the input state",
				ErrMissingQuantity, name)
		}
		diff, err := newQ.AddScaled(old, -1)
		if err != nil {
			return nil, nil, err
		}
		tends[name] = diff.Scaled(1 / secs).WithUnits(units.TendencyUnits(newQ.Units()))
	}
	return tends, diags, nil
}
