// Package composite aggregates components of one kind behind the same
// interface a single component presents: a tendency composite is a
// TendencySource that sums its members' tendencies, a diagnostic
// composite runs its members in sequence. Diagnostics may only come
// from one member each.
package composite

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// ErrSharedDiagnostic is returned when two members of a composite
// declare or produce the same diagnostic quantity.
var ErrSharedDiagnostic = errors.New("composite: diagnostic computed by more than one component")

// Tendency sums the tendencies of several sources. Overlapping
// quantities are added with the addend converted to the units of the
// first source that produced it.
type Tendency struct {
	sources []contract.TendencySource
}

// NewTendency validates that the sources' declarations can be combined
// and that no diagnostic is declared twice.
func NewTendency(sources ...contract.TendencySource) (*Tendency, error) {
	c := &Tendency{sources: sources}
	if _, err := c.combinedInputs(); err != nil {
		return nil, err
	}
	if _, err := c.combinedTendencies(); err != nil {
		return nil, err
	}
	if _, err := c.mergedDiagnostics(); err != nil {
		return nil, err
	}
	return c, nil
}

// InputProperties returns the combined input declaration of all
// sources, recomputed on every call.
func (c *Tendency) InputProperties() props.Properties {
	pr, _ := c.combinedInputs()
	return pr
}

// TendencyProperties returns the combined tendency declaration; for
// overlapping quantities the first source's units win.
func (c *Tendency) TendencyProperties() props.Properties {
	pr, _ := c.combinedTendencies()
	return pr
}

// DiagnosticProperties returns the union of the sources' diagnostic
// declarations.
func (c *Tendency) DiagnosticProperties() props.Properties {
	pr, _ := c.mergedDiagnostics()
	return pr
}

// TendenciesAt calls every source against the same state and merges
// the results: tendencies for the same quantity are summed, shared
// diagnostics are an error.
func (c *Tendency) TendenciesAt(st *state.State, dt time.Duration) (map[string]*state.Quantity, map[string]*state.Quantity, error) {
	tends := make(map[string]*state.Quantity)
	diags := make(map[string]*state.Quantity)
	for _, s := range c.sources {
		t, d, err := s.TendenciesAt(st, dt)
		if err != nil {
			return nil, nil, err
		}
		for name, q := range t {
			have, ok := tends[name]
			if !ok {
				tends[name] = q
				continue
			}
			sum, err := have.Add(q)
			if err != nil {
				return nil, nil, fmt.Errorf("composite: summing %q: %w", name, err)
			}
			tends[name] = sum
		}
		for name, q := range d {
			if _, ok := diags[name]; ok {
				return nil, nil, fmt.Errorf("%w: %q", ErrSharedDiagnostic, name)
			}
			diags[name] = q
		}
	}
	return tends, diags, nil
}

// Declarations are immutable once a source is constructed, so the
// recombinations below cannot fail after NewTendency has validated
// them; the getters discard the error on that basis.

func (c *Tendency) combinedInputs() (props.Properties, error) {
	list := make([]props.Properties, 0, len(c.sources))
	for _, s := range c.sources {
		in, err := s.InputProperties().Resolved(nil)
		if err != nil {
			return nil, err
		}
		list = append(list, in)
	}
	return props.Combine(list, nil)
}

func (c *Tendency) combinedTendencies() (props.Properties, error) {
	list := make([]props.Properties, 0, len(c.sources))
	for _, s := range c.sources {
		tp, err := s.TendencyProperties().Resolved(s.InputProperties())
		if err != nil {
			return nil, err
		}
		list = append(list, tp)
	}
	return props.Combine(list, nil)
}

func (c *Tendency) mergedDiagnostics() (props.Properties, error) {
	out := props.Properties{}
	for _, s := range c.sources {
		dp, err := s.DiagnosticProperties().Resolved(s.InputProperties())
		if err != nil {
			return nil, err
		}
		for _, name := range dp.Names() {
			if _, ok := out[name]; ok {
				return nil, fmt.Errorf("%w: %q", ErrSharedDiagnostic, name)
			}
			out[name] = dp[name]
		}
	}
	return out, nil
}

// Diagnostic runs diagnostic components in sequence against the same
// state.
type Diagnostic struct {
	components []contract.DiagnosticSource
}

// NewDiagnostic validates that the components' declarations can be
// combined and that no diagnostic is declared twice.
func NewDiagnostic(components ...contract.DiagnosticSource) (*Diagnostic, error) {
	c := &Diagnostic{components: components}
	if _, err := c.combinedInputs(); err != nil {
		return nil, err
	}
	if _, err := c.mergedDiagnostics(); err != nil {
		return nil, err
	}
	return c, nil
}

// InputProperties returns the combined input declaration of all
// components, recomputed on every call.
func (c *Diagnostic) InputProperties() props.Properties {
	pr, _ := c.combinedInputs()
	return pr
}

// DiagnosticProperties returns the union of the components' diagnostic
// declarations.
func (c *Diagnostic) DiagnosticProperties() props.Properties {
	pr, _ := c.mergedDiagnostics()
	return pr
}

// Diagnostics calls every component and merges the results; shared
// names are an error.
func (c *Diagnostic) Diagnostics(st *state.State) (map[string]*state.Quantity, error) {
	out := make(map[string]*state.Quantity)
	for _, comp := range c.components {
		d, err := comp.Diagnostics(st)
		if err != nil {
			return nil, err
		}
		for name, q := range d {
			if _, ok := out[name]; ok {
				return nil, fmt.Errorf("%w: %q", ErrSharedDiagnostic, name)
			}
			out[name] = q
		}
	}
	return out, nil
}

func (c *Diagnostic) combinedInputs() (props.Properties, error) {
	list := make([]props.Properties, 0, len(c.components))
	for _, comp := range c.components {
		in, err := comp.InputProperties().Resolved(nil)
		if err != nil {
			return nil, err
		}
		list = append(list, in)
	}
	return props.Combine(list, nil)
}

func (c *Diagnostic) mergedDiagnostics() (props.Properties, error) {
	out := props.Properties{}
	for _, comp := range c.components {
		dp, err := comp.DiagnosticProperties().Resolved(comp.InputProperties())
		if err != nil {
			return nil, err
		}
		for _, name := range dp.Names() {
			if _, ok := out[name]; ok {
				return nil, fmt.Errorf("%w: %q", ErrSharedDiagnostic, name)
			}
			out[name] = dp[name]
		}
	}
	return out, nil
}
