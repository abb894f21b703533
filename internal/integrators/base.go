// Package integrators provides time integration schemes that advance a
// state from the tendencies its components produce. Every scheme is a
// contract.Stepper over a tendency composite; schemes with memory keep
// it per instance, so an instance must not be shared across concurrent
// runs.
package integrators

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/composite"
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

// advancer is the scheme-specific part of a stepper: it advances the
// stepped quantities and returns them with the sources' diagnostics.
type advancer interface {
	advance(st *state.State, dt time.Duration) (diags, next map[string]*state.Quantity, err error)
}

// TendencyStepper is the shared machinery of the schemes: it owns the
// tendency composite, derives the stepper-facing declarations from it,
// and wraps the scheme's advance in the untouched-quantity and
// tendency-diagnostic plumbing.
type TendencyStepper struct {
	name   string
	source *composite.Tendency
	cfg    config
	adv    advancer
}

func newBase(defaultName string, sources []contract.TendencySource, cfg config, adv advancer) (*TendencyStepper, error) {
	src, err := composite.NewTendency(sources...)
	if err != nil {
		return nil, err
	}
	name := cfg.name
	if name == "" {
		name = defaultName
	}
	b := &TendencyStepper{name: name, source: src, cfg: cfg, adv: adv}

	// surface declaration problems at construction, not mid-run
	outs, err := b.deriveOutputs()
	if err != nil {
		return nil, err
	}
	if _, err := props.Combine([]props.Properties{src.InputProperties(), outs}, nil); err != nil {
		return nil, err
	}
	if cfg.tendDiag {
		dp := src.DiagnosticProperties()
		for _, qname := range outs.Names() {
			dn := tendencyName(qname, name)
			if _, ok := dp[dn]; ok {
				return nil, fmt.Errorf("%w: %q", contract.ErrTendencyNameCollision, dn)
			}
		}
	}
	return b, nil
}

// Name identifies the integrator in synthesized diagnostic names.
func (b *TendencyStepper) Name() string { return b.name }

// InputProperties is the combined inputs of all sources plus the
// stepped quantities themselves, recomputed on every call.
func (b *TendencyStepper) InputProperties() props.Properties {
	outs, _ := b.deriveOutputs()
	pr, _ := props.Combine([]props.Properties{b.source.InputProperties(), outs}, nil)
	return pr
}

// OutputProperties maps each tendency onto the quantity it steps, with
// the rate units integrated over a second.
func (b *TendencyStepper) OutputProperties() props.Properties {
	pr, _ := b.deriveOutputs()
	return pr
}

// DiagnosticProperties is the union of the sources' diagnostics, plus
// the synthesized tendency diagnostics when enabled.
func (b *TendencyStepper) DiagnosticProperties() props.Properties {
	dp := b.source.DiagnosticProperties()
	if !b.cfg.tendDiag {
		return dp
	}
	inputs := b.InputProperties()
	outs, _ := b.deriveOutputs()
	for _, name := range outs.Names() {
		p := outs[name]
		dp[tendencyName(name, b.name)] = props.Property{
			Dims:  p.Dims,
			Units: units.TendencyUnits(inputs[name].Units),
		}
	}
	return dp
}

func (b *TendencyStepper) deriveOutputs() (props.Properties, error) {
	out := props.Properties{}
	for name, p := range b.source.TendencyProperties() {
		u, err := units.Clean(p.Units + " s")
		if err != nil {
			return nil, fmt.Errorf("integrators: tendency %q: %w", name, err)
		}
		p.Units = u
		out[name] = p
	}
	return out, nil
}

// Step advances the state by one interval: the scheme computes the
// stepped quantities, untouched quantities are carried over by
// reference, and the first-order difference is reported as a
// diagnostic when enabled.
func (b *TendencyStepper) Step(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	diags, next, err := b.adv.advance(st, dt)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range st.Names() {
		if _, ok := next[name]; !ok {
			q, _ := st.Get(name)
			next[name] = q
		}
	}
	if b.cfg.tendDiag {
		if err := b.insertTendencies(st, next, diags, dt); err != nil {
			return nil, nil, err
		}
	}
	return diags, next, nil
}

// insertTendencies reports (new-old)/dt for every stepped quantity,
// converted to the input units per second.
func (b *TendencyStepper) insertTendencies(st *state.State, next, diags map[string]*state.Quantity, dt time.Duration) error {
	secs := dt.Seconds()
	inputs := b.InputProperties()
	outs, _ := b.deriveOutputs()
	for _, name := range outs.Names() {
		dn := tendencyName(name, b.name)
		if _, ok := diags[dn]; ok {
			return fmt.Errorf("%w: %q", contract.ErrTendencyNameCollision, dn)
		}
		old, okOld := st.Get(name)
		newQ, okNew := next[name]
		if !okOld || !okNew {
			continue
		}
		target := inputs[name].Units
		newC, err := newQ.ToUnits(target)
		if err != nil {
			return err
		}
		diff, err := newC.AddScaled(old, -1)
		if err != nil {
			return err
		}
		diags[dn] = diff.Scaled(1 / secs).WithUnits(units.TendencyUnits(target))
	}
	return nil
}

func tendencyName(quantity, stepper string) string {
	return fmt.Sprintf("%s_tendency_from_%s", quantity, stepper)
}

// convertTendencies normalizes tendencies onto the state's own units
// per second, so scheme arithmetic can add value + rate*seconds
// directly.
func convertTendencies(st *state.State, tends map[string]*state.Quantity) (map[string]*state.Quantity, error) {
	out := make(map[string]*state.Quantity, len(tends))
	for name, q := range tends {
		cur, ok := st.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q has a tendency but no state value",
				contract.ErrMissingQuantity, name)
		}
		conv, err := q.ToUnits(units.TendencyUnits(cur.Units()))
		if err != nil {
			return nil, err
		}
		out[name] = conv
	}
	return out, nil
}

// eulerStep advances every tended quantity by rate*dt. Tendencies must
// already be normalized against the state.
func eulerStep(st *state.State, tends map[string]*state.Quantity, dt time.Duration) (map[string]*state.Quantity, error) {
	secs := dt.Seconds()
	next := make(map[string]*state.Quantity, len(tends))
	for name, tq := range tends {
		cur, _ := st.Get(name)
		stepped, err := cur.AddScaled(tq.WithUnits(cur.Units()), secs)
		if err != nil {
			return nil, err
		}
		next[name] = stepped
	}
	return next, nil
}

// fixedStep pins the interval of schemes with memory to its first
// value.
type fixedStep struct {
	dt time.Duration
}

func (f *fixedStep) check(dt time.Duration) error {
	if f.dt == 0 {
		f.dt = dt
		return nil
	}
	if f.dt != dt {
		return fmt.Errorf("%w: have %s, got %s", ErrTimestepChanged, f.dt, dt)
	}
	return nil
}
