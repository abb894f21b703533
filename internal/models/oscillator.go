package models

import (
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
)

// Oscillator is a chain of equal point masses joined by identical
// springs, with both ends anchored to walls. Positions are
// displacements from rest.
type Oscillator struct {
	Stiffness float64 // N m^-1
	Mass      float64 // kg
	Damping   float64 // s^-1
}

func NewOscillator() *Oscillator {
	return &Oscillator{
		Stiffness: 1.0,
		Mass:      1.0,
		Damping:   0,
	}
}

func (o *Oscillator) InputProperties() props.Properties {
	return props.Properties{
		"position": {Dims: []string{"mode"}, Units: "m"},
		"velocity": {Dims: []string{"mode"}, Units: "m s^-1"},
	}
}

func (o *Oscillator) TendencyProperties() props.Properties {
	return props.Properties{
		"position": {Dims: []string{"mode"}, Units: "m s^-1"},
		"velocity": {Dims: []string{"mode"}, Units: "m s^-2"},
	}
}

func (o *Oscillator) DiagnosticProperties() props.Properties { return props.Properties{} }

func (o *Oscillator) Compute(rs contract.RawState) (contract.RawFields, contract.RawFields, error) {
	pos := rs.Arrays["position"].Data()
	vel := rs.Arrays["velocity"].Data()
	n := len(pos)
	dpos := ndarray.New(n)
	dvel := ndarray.New(n)
	dp := dpos.Data()
	dv := dvel.Data()
	for i := 0; i < n; i++ {
		dp[i] = vel[i]
		stretch := 2 * pos[i]
		if i > 0 {
			stretch -= pos[i-1]
		}
		if i < n-1 {
			stretch -= pos[i+1]
		}
		dv[i] = -o.Stiffness*stretch/o.Mass - o.Damping*vel[i]
	}
	return contract.RawFields{"position": dpos, "velocity": dvel}, nil, nil
}
