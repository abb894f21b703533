package contract

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/marshal"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

// StepperComponent wraps a StepperKernel in the checked call pipeline.
// Step returns only the quantities the kernel stepped; callers merge
// untouched quantities into the next state themselves.
type StepperComponent struct {
	kernel      StepperKernel
	name        string
	opts        options
	inputs      props.Properties
	diags       props.Properties
	outputs     props.Properties
	synthesized []string
	tracers     []string
}

// NewStepperComponent validates the kernel's declarations and wraps
// it.
func NewStepperComponent(k StepperKernel, opts ...Option) (*StepperComponent, error) {
	o := buildOptions(k, opts)
	inputs := k.InputProperties().Clone()
	if err := inputs.Validate(); err != nil {
		return nil, fmt.Errorf("%s inputs: %w", o.name, err)
	}
	outputs := k.OutputProperties().Clone()
	if err := outputs.ValidateLinked(inputs); err != nil {
		return nil, fmt.Errorf("%s outputs: %w", o.name, err)
	}
	if err := checkCompanionUnits("output", outputs, inputs, false); err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	diags := k.DiagnosticProperties().Clone()
	if err := diags.ValidateLinked(inputs); err != nil {
		return nil, fmt.Errorf("%s diagnostics: %w", o.name, err)
	}
	if err := checkCompanionUnits("diagnostic", diags, inputs, false); err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	c := &StepperComponent{
		kernel: k, name: o.name, opts: o,
		inputs: inputs, diags: diags, outputs: outputs,
		tracers: tracerDims(k, o),
	}
	if o.tendDiag {
		if err := c.declareTendencyDiagnostics(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// declareTendencyDiagnostics adds one per-second diagnostic per output
// and requires every stepped quantity to also be an input with the
// output's dims and units, inserting the input declaration when
// absent. The raw difference is computed before outflow, so the
// synthesized names are only ignored by the outflow checker.
func (c *StepperComponent) declareTendencyDiagnostics() error {
	for _, name := range c.outputs.Names() {
		out := c.outputs[name]
		dn := tendencyDiagnosticName(name, c.name)
		if _, ok := c.diags[dn]; ok {
			return fmt.Errorf("%w: %s already declares %q", ErrTendencyNameCollision, c.name, dn)
		}
		c.diags[dn] = props.Property{
			Dims: out.Dims, Units: units.TendencyUnits(out.Units),
			DimsLike: out.DimsLike, MatchDimsLike: out.MatchDimsLike,
		}
		c.synthesized = append(c.synthesized, dn)
		in, ok := c.inputs[name]
		if !ok {
			c.inputs[name] = props.Property{
				Dims: out.Dims, Units: out.Units,
				DimsLike: out.DimsLike, MatchDimsLike: out.MatchDimsLike,
			}
			continue
		}
		outDims, _ := c.outputs.DimsOf(name, c.inputs)
		inDims, _ := c.inputs.DimsOf(name, nil)
		if !sameDims(inDims, outDims) || in.Units != out.Units {
			return fmt.Errorf("%w: stepped quantity %q must be an input with the output's dims and units",
				props.ErrInvalidDeclaration, name)
		}
	}
	return nil
}

// Name identifies the component in error messages and synthesized
// diagnostic names.
func (c *StepperComponent) Name() string { return c.name }

// InputProperties returns a copy of the validated input declaration.
func (c *StepperComponent) InputProperties() props.Properties { return c.inputs.Clone() }

// DiagnosticProperties returns a copy of the diagnostic declaration,
// including any synthesized tendency diagnostics.
func (c *StepperComponent) DiagnosticProperties() props.Properties { return c.diags.Clone() }

// OutputProperties returns a copy of the validated output declaration.
func (c *StepperComponent) OutputProperties() props.Properties { return c.outputs.Clone() }

// Step advances the stepped quantities over dt, returning diagnostics
// and the new values as labeled quantities.
func (c *StepperComponent) Step(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	if !c.opts.noValidate {
		if err := checkInputs(st, c.inputs); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	rs, err := rawInputs(st, c.inputs, c.opts.packer, c.tracers)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	// Snapshot the stepped quantities before the kernel runs: raw
	// buffers may be shared with the state, and the difference needs
	// the pre-step values.
	var old RawFields
	if c.opts.tendDiag {
		old = make(RawFields, len(c.outputs))
		for _, name := range c.outputs.Names() {
			if arr, ok := lookupRaw(rs.Arrays, name, c.inputs, c.inputs); ok {
				old[name] = arr.Clone()
			}
		}
	}
	rawD, rawOut, err := c.kernel.Compute(rs, dt)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	var tracer *ndarray.Array
	if c.tracersActive() {
		tracer = rawOut[TracerKey]
		delete(rawOut, TracerKey)
	}
	if !c.opts.noValidate {
		res, err := marshal.ResolveWildcard(st, c.inputs)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
		if err := checkOutputs(rawD, c.diags, c.inputs, res, ignoreSet(c.synthesized)); err != nil {
			return nil, nil, fmt.Errorf("%s diagnostics: %w", c.name, err)
		}
		if err := checkOutputs(rawOut, c.outputs, c.inputs, res, nil); err != nil {
			return nil, nil, fmt.Errorf("%s outputs: %w", c.name, err)
		}
	}
	if c.opts.tendDiag {
		if err := c.insertRawTendencies(old, rawOut, rawD, dt); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	diags, err := marshal.RestoreQuantities(rawD, c.diags, st, c.inputs, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	outputs, err := marshal.RestoreQuantities(rawOut, c.outputs, st, c.inputs, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if c.tracersActive() && tracer != nil {
		unpacked, err := c.opts.packer.Unpack(tracer, st)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
		for n, q := range unpacked {
			outputs[n] = q
		}
	}
	return diags, outputs, nil
}

// insertRawTendencies adds (new-old)/dt for every stepped quantity to
// the raw diagnostics before outflow, keyed by the synthesized name.
func (c *StepperComponent) insertRawTendencies(old, rawOut, rawD RawFields, dt time.Duration) error {
	secs := dt.Seconds()
	for _, name := range c.outputs.Names() {
		dn := tendencyDiagnosticName(name, c.name)
		if _, ok := rawD[dn]; ok {
			return fmt.Errorf("%w: kernel already produced %q", ErrTendencyNameCollision, dn)
		}
		newArr, ok := lookupRaw(rawOut, name, c.outputs, c.inputs)
		if !ok {
			continue
		}
		prev, ok := old[name]
		if !ok {
			continue
		}
		diff, err := newArr.AddScaled(-1, prev)
		if err != nil {
			return err
		}
		rawD[dn] = diff.Scale(1 / secs)
	}
	return nil
}

func (c *StepperComponent) tracersActive() bool {
	return c.opts.packer != nil && len(c.tracers) > 0
}
