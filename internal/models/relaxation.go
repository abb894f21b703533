package models

import (
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/units"
)

// NewtonianRelaxation nudges a quantity toward an equilibrium field
// with the tendency -(x - x_eq)/tau. The equilibrium and the
// relaxation timescale are read from the state under names derived
// from the quantity name.
type NewtonianRelaxation struct {
	Quantity string
	Units    string
}

func NewNewtonianRelaxation(quantity, unitstr string) *NewtonianRelaxation {
	return &NewtonianRelaxation{Quantity: quantity, Units: unitstr}
}

// EquilibriumName is the state name the equilibrium field is read
// from.
func (n *NewtonianRelaxation) EquilibriumName() string { return "equilibrium_" + n.Quantity }

// TimescaleName is the state name the relaxation timescale is read
// from.
func (n *NewtonianRelaxation) TimescaleName() string { return n.Quantity + "_relaxation_timescale" }

func (n *NewtonianRelaxation) InputProperties() props.Properties {
	return props.Properties{
		n.Quantity:          {Dims: []string{props.Wildcard}, Units: n.Units},
		n.EquilibriumName(): {Dims: []string{props.Wildcard}, Units: n.Units},
		n.TimescaleName():   {Dims: []string{props.Wildcard}, Units: "s"},
	}
}

func (n *NewtonianRelaxation) TendencyProperties() props.Properties {
	return props.Properties{
		n.Quantity: {Dims: []string{props.Wildcard}, Units: units.TendencyUnits(n.Units)},
	}
}

func (n *NewtonianRelaxation) DiagnosticProperties() props.Properties { return props.Properties{} }

func (n *NewtonianRelaxation) Compute(rs contract.RawState) (contract.RawFields, contract.RawFields, error) {
	x := rs.Arrays[n.Quantity].Data()
	eq := rs.Arrays[n.EquilibriumName()].Data()
	tau := rs.Arrays[n.TimescaleName()].Data()
	out := ndarray.New(len(x))
	data := out.Data()
	for i := range data {
		data[i] = -(x[i] - eq[i]) / tau[i]
	}
	return contract.RawFields{n.Quantity: out}, nil, nil
}
