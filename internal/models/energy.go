package models

import (
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
)

// TotalEnergyName is the diagnostic the oscillator energy is reported
// under.
const TotalEnergyName = "total_energy"

// EnergyDiagnostic reports the total mechanical energy of the
// oscillator chain: kinetic plus the potential of every spring,
// including the two wall anchors. With zero damping the value is a
// conserved scalar.
type EnergyDiagnostic struct {
	Stiffness float64 // N m^-1
	Mass      float64 // kg
}

func NewEnergyDiagnostic() *EnergyDiagnostic {
	return &EnergyDiagnostic{Stiffness: 1.0, Mass: 1.0}
}

func (e *EnergyDiagnostic) InputProperties() props.Properties {
	return props.Properties{
		"position": {Dims: []string{"mode"}, Units: "m"},
		"velocity": {Dims: []string{"mode"}, Units: "m s^-1"},
	}
}

func (e *EnergyDiagnostic) DiagnosticProperties() props.Properties {
	return props.Properties{
		TotalEnergyName: {Dims: []string{}, Units: "J"},
	}
}

func (e *EnergyDiagnostic) Compute(rs contract.RawState) (contract.RawFields, error) {
	pos := rs.Arrays["position"].Data()
	vel := rs.Arrays["velocity"].Data()
	total := 0.0
	for _, v := range vel {
		total += 0.5 * e.Mass * v * v
	}
	prev := 0.0
	for _, x := range pos {
		d := x - prev
		total += 0.5 * e.Stiffness * d * d
		prev = x
	}
	// the spring from the last mass back to the wall
	total += 0.5 * e.Stiffness * prev * prev
	return contract.RawFields{TotalEnergyName: ndarray.Scalar(total)}, nil
}
