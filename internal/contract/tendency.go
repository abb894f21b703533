package contract

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/marshal"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

// tendencyCore is the shared pipeline behind both tendency component
// kinds; the kernel is abstracted to a step-aware compute function.
type tendencyCore struct {
	name        string
	opts        options
	compute     func(RawState, time.Duration) (RawFields, RawFields, error)
	inputs      props.Properties
	tends       props.Properties
	diags       props.Properties
	synthesized []string
	tracers     []string
}

func newTendencyCore(kernel any, inputs, tends, diags props.Properties,
	compute func(RawState, time.Duration) (RawFields, RawFields, error),
	opts []Option) (*tendencyCore, error) {

	o := buildOptions(kernel, opts)
	in := inputs.Clone()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%s inputs: %w", o.name, err)
	}
	tn := tends.Clone()
	if err := tn.ValidateLinked(in); err != nil {
		return nil, fmt.Errorf("%s tendencies: %w", o.name, err)
	}
	if err := checkCompanionUnits("tendency", tn, in, true); err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	dg := diags.Clone()
	if err := dg.ValidateLinked(in); err != nil {
		return nil, fmt.Errorf("%s diagnostics: %w", o.name, err)
	}
	if err := checkCompanionUnits("diagnostic", dg, in, false); err != nil {
		return nil, fmt.Errorf("%s: %w", o.name, err)
	}
	c := &tendencyCore{
		name: o.name, opts: o, compute: compute,
		inputs: in, tends: tn, diags: dg,
		tracers: tracerDims(kernel, o),
	}
	if o.tendDiag {
		if err := c.declareTendencyDiagnostics(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// declareTendencyDiagnostics adds one diagnostic per tendency,
// carrying the tendency's own dims and units. The values are copied in
// after restore, so the synthesized names are ignored during outflow.
func (c *tendencyCore) declareTendencyDiagnostics() error {
	for _, name := range c.tends.Names() {
		dn := tendencyDiagnosticName(name, c.name)
		if _, ok := c.diags[dn]; ok {
			return fmt.Errorf("%w: %s already declares %q", ErrTendencyNameCollision, c.name, dn)
		}
		p := c.tends[name]
		c.diags[dn] = props.Property{
			Dims: p.Dims, Units: p.Units,
			DimsLike: p.DimsLike, MatchDimsLike: p.MatchDimsLike,
		}
		c.synthesized = append(c.synthesized, dn)
	}
	return nil
}

// Name identifies the component in error messages and synthesized
// diagnostic names.
func (c *tendencyCore) Name() string { return c.name }

// InputProperties returns a copy of the validated input declaration.
func (c *tendencyCore) InputProperties() props.Properties { return c.inputs.Clone() }

// TendencyProperties returns a copy of the validated tendency
// declaration.
func (c *tendencyCore) TendencyProperties() props.Properties { return c.tends.Clone() }

// DiagnosticProperties returns a copy of the diagnostic declaration,
// including any synthesized tendency diagnostics.
func (c *tendencyCore) DiagnosticProperties() props.Properties { return c.diags.Clone() }

func (c *tendencyCore) call(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	if !c.opts.noValidate {
		if err := checkInputs(st, c.inputs); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
	}
	rs, err := rawInputs(st, c.inputs, c.opts.packer, c.tracers)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	rawT, rawD, err := c.compute(rs, dt)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	tracer := rawT[TracerKey]
	if c.tracersActive() {
		delete(rawT, TracerKey)
	}
	if !c.opts.noValidate {
		res, err := marshal.ResolveWildcard(st, c.inputs)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
		if err := checkOutputs(rawT, c.tends, c.inputs, res, nil); err != nil {
			return nil, nil, fmt.Errorf("%s tendencies: %w", c.name, err)
		}
		if err := checkOutputs(rawD, c.diags, c.inputs, res, ignoreSet(c.synthesized)); err != nil {
			return nil, nil, fmt.Errorf("%s diagnostics: %w", c.name, err)
		}
	}
	tendencies, err := marshal.RestoreQuantities(rawT, c.tends, st, c.inputs, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	diags, err := marshal.RestoreQuantities(rawD, c.diags, st, c.inputs,
		&marshal.RestoreOptions{IgnoreNames: c.synthesized})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if c.opts.tendDiag {
		for _, name := range c.tends.Names() {
			dn := tendencyDiagnosticName(name, c.name)
			if _, ok := diags[dn]; ok {
				return nil, nil, fmt.Errorf("%w: %s would overwrite %q", ErrTendencyNameCollision, c.name, dn)
			}
			diags[dn] = tendencies[name]
		}
	}
	if c.tracersActive() && tracer != nil {
		unpacked, err := c.opts.packer.Unpack(tracer, st)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", c.name, err)
		}
		for n, q := range unpacked {
			tendencies[n] = q.WithUnits(units.TendencyUnits(q.Units()))
		}
	}
	return tendencies, diags, nil
}

func (c *tendencyCore) tracersActive() bool {
	return c.opts.packer != nil && len(c.tracers) > 0
}

// TendencyComponent wraps a TendencyKernel. Its rates depend only on
// the state, never on the step length.
type TendencyComponent struct {
	*tendencyCore
}

// NewTendencyComponent validates the kernel's declarations and wraps
// it.
func NewTendencyComponent(k TendencyKernel, opts ...Option) (*TendencyComponent, error) {
	core, err := newTendencyCore(k,
		k.InputProperties(), k.TendencyProperties(), k.DiagnosticProperties(),
		func(rs RawState, _ time.Duration) (RawFields, RawFields, error) {
			return k.Compute(rs)
		},
		opts)
	if err != nil {
		return nil, err
	}
	return &TendencyComponent{core}, nil
}

// Tendencies runs the kernel and returns its tendencies and
// diagnostics as labeled quantities.
func (c *TendencyComponent) Tendencies(st *state.State) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	return c.call(st, 0)
}

// TendenciesAt implements TendencySource; the step length is ignored.
func (c *TendencyComponent) TendenciesAt(st *state.State, _ time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	return c.call(st, 0)
}

// ImplicitTendencyComponent wraps an ImplicitTendencyKernel, whose
// rates depend on the step length.
type ImplicitTendencyComponent struct {
	*tendencyCore
}

// NewImplicitTendencyComponent validates the kernel's declarations and
// wraps it.
func NewImplicitTendencyComponent(k ImplicitTendencyKernel, opts ...Option) (*ImplicitTendencyComponent, error) {
	core, err := newTendencyCore(k,
		k.InputProperties(), k.TendencyProperties(), k.DiagnosticProperties(),
		k.Compute, opts)
	if err != nil {
		return nil, err
	}
	return &ImplicitTendencyComponent{core}, nil
}

// Tendencies runs the kernel for a step of length dt.
func (c *ImplicitTendencyComponent) Tendencies(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	return c.call(st, dt)
}

// TendenciesAt implements TendencySource.
func (c *ImplicitTendencyComponent) TendenciesAt(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	return c.call(st, dt)
}
