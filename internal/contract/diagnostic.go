package contract

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/marshal"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// DiagnosticComponent wraps a DiagnosticKernel in the checked call
// pipeline.
type DiagnosticComponent struct {
	kernel DiagnosticKernel
	name   string
	opts   options
	inputs props.Properties
	diags  props.Properties
}

// NewDiagnosticComponent validates the kernel's declarations and wraps
// it. Declaration errors surface here, not at call time.
func NewDiagnosticComponent(k DiagnosticKernel, opts ...Option) (*DiagnosticComponent, error) {
	o := buildOptions(k, opts)
	inputs := k.InputProperties().Clone()
	if err := inputs.Validate(); err != nil {
		return nil, fmt.Errorf("%s inputs: %w", o.name, err)
	}
	diags := k.DiagnosticProperties().Clone()
	if err := diags.ValidateLinked(inputs); err != nil {
		return nil, fmt.Errorf("%s diagnostics: %w", o.name, err)
	}
	if err := checkCompanionUnits("diagnostic", diags, inputs, false); err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	return &DiagnosticComponent{kernel: k, name: o.name, opts: o, inputs: inputs, diags: diags}, nil
}

// Name identifies the component in error messages.
func (c *DiagnosticComponent) Name() string { return c.name }

// InputProperties returns a copy of the validated input declaration.
func (c *DiagnosticComponent) InputProperties() props.Properties { return c.inputs.Clone() }

// DiagnosticProperties returns a copy of the validated diagnostic
// declaration.
func (c *DiagnosticComponent) DiagnosticProperties() props.Properties { return c.diags.Clone() }

// Diagnostics runs the kernel against st and returns its results as
// labeled quantities. The state itself is never modified.
func (c *DiagnosticComponent) Diagnostics(st *state.State) (map[string]*state.Quantity, error) {
	if !c.opts.noValidate {
		if err := checkInputs(st, c.inputs); err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	rs, err := rawInputs(st, c.inputs, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	out, err := c.kernel.Compute(rs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if !c.opts.noValidate {
		res, err := marshal.ResolveWildcard(st, c.inputs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		if err := checkOutputs(out, c.diags, c.inputs, res, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	restored, err := marshal.RestoreQuantities(out, c.diags, st, c.inputs, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return restored, nil
}
