package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/composite"
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// WithDiagnostics wraps a stepper so the given diagnostic components
// run after every step, their outputs joining the step's diagnostics.
// The components see the input state with the stepper's own
// diagnostics already merged in. With no components the stepper is
// returned unwrapped.
func WithDiagnostics(s contract.Stepper, components ...contract.DiagnosticSource) (contract.Stepper, error) {
	if len(components) == 0 {
		return s, nil
	}
	comp, err := composite.NewDiagnostic(components...)
	if err != nil {
		return nil, err
	}
	return &diagnosedStepper{stepper: s, diags: comp}, nil
}

type diagnosedStepper struct {
	stepper contract.Stepper
	diags   *composite.Diagnostic
}

func (d *diagnosedStepper) InputProperties() props.Properties {
	merged := d.stepper.InputProperties().Clone()
	for name, p := range d.diags.InputProperties() {
		if _, ok := merged[name]; !ok {
			merged[name] = p
		}
	}
	return merged
}

func (d *diagnosedStepper) DiagnosticProperties() props.Properties {
	merged := d.stepper.DiagnosticProperties().Clone()
	for name, p := range d.diags.DiagnosticProperties() {
		merged[name] = p
	}
	return merged
}

func (d *diagnosedStepper) OutputProperties() props.Properties {
	return d.stepper.OutputProperties()
}

func (d *diagnosedStepper) Step(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	diags, next, err := d.stepper.Step(st, dt)
	if err != nil {
		return nil, nil, err
	}

	observed := st.Copy()
	for name, q := range diags {
		observed.Set(name, q)
	}
	extra, err := d.diags.Diagnostics(observed)
	if err != nil {
		return nil, nil, err
	}
	if diags == nil {
		diags = make(map[string]*state.Quantity, len(extra))
	}
	for name, q := range extra {
		if _, ok := diags[name]; ok {
			return nil, nil, fmt.Errorf("sim: diagnostic %q produced by both the stepper and a diagnostic component", name)
		}
		diags[name] = q
	}
	return diags, next, nil
}
