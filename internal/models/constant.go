package models

import (
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// ConstantTendency emits the same tendencies, and optionally the same
// diagnostics, on every call regardless of the state. The quantities
// given at construction define its declarations.
type ConstantTendency struct {
	tends map[string]*state.Quantity
	diags map[string]*state.Quantity
}

func NewConstantTendency(tendencies, diagnostics map[string]*state.Quantity) *ConstantTendency {
	return &ConstantTendency{
		tends: cloneQuantities(tendencies),
		diags: cloneQuantities(diagnostics),
	}
}

func (c *ConstantTendency) InputProperties() props.Properties { return props.Properties{} }

func (c *ConstantTendency) TendencyProperties() props.Properties { return declarationsOf(c.tends) }

func (c *ConstantTendency) DiagnosticProperties() props.Properties { return declarationsOf(c.diags) }

func (c *ConstantTendency) Compute(contract.RawState) (contract.RawFields, contract.RawFields, error) {
	return rawCopies(c.tends), rawCopies(c.diags), nil
}

// ConstantDiagnostic emits the same diagnostics on every call.
type ConstantDiagnostic struct {
	diags map[string]*state.Quantity
}

func NewConstantDiagnostic(diagnostics map[string]*state.Quantity) *ConstantDiagnostic {
	return &ConstantDiagnostic{diags: cloneQuantities(diagnostics)}
}

func (c *ConstantDiagnostic) InputProperties() props.Properties { return props.Properties{} }

func (c *ConstantDiagnostic) DiagnosticProperties() props.Properties { return declarationsOf(c.diags) }

func (c *ConstantDiagnostic) Compute(contract.RawState) (contract.RawFields, error) {
	return rawCopies(c.diags), nil
}

func cloneQuantities(qs map[string]*state.Quantity) map[string]*state.Quantity {
	out := make(map[string]*state.Quantity, len(qs))
	for name, q := range qs {
		out[name] = q.Clone()
	}
	return out
}

func declarationsOf(qs map[string]*state.Quantity) props.Properties {
	ps := make(props.Properties, len(qs))
	for name, q := range qs {
		dims := q.Dims()
		if dims == nil {
			dims = []string{}
		}
		ps[name] = props.Property{Dims: dims, Units: q.Units()}
	}
	return ps
}

func rawCopies(qs map[string]*state.Quantity) contract.RawFields {
	out := make(contract.RawFields, len(qs))
	for name, q := range qs {
		out[name] = q.Array().Clone()
	}
	return out
}
