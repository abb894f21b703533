package models

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/props"
)

// ExponentialDecay advances a quantity along its exact decay curve,
// x(t+dt) = x(t) * exp(-dt/tau). Being analytic it carries no
// truncation error, which makes it a useful reference when wrapped in
// TimeDifferencing.
type ExponentialDecay struct {
	Quantity  string
	Units     string
	Timescale time.Duration
}

func NewExponentialDecay(quantity, unitstr string, timescale time.Duration) *ExponentialDecay {
	return &ExponentialDecay{Quantity: quantity, Units: unitstr, Timescale: timescale}
}

func (d *ExponentialDecay) InputProperties() props.Properties {
	return props.Properties{
		d.Quantity: {Dims: []string{props.Wildcard}, Units: d.Units},
	}
}

func (d *ExponentialDecay) DiagnosticProperties() props.Properties { return props.Properties{} }

func (d *ExponentialDecay) OutputProperties() props.Properties {
	return props.Properties{
		d.Quantity: {Dims: []string{props.Wildcard}, Units: d.Units},
	}
}

func (d *ExponentialDecay) Compute(rs contract.RawState, dt time.Duration) (contract.RawFields, contract.RawFields, error) {
	if d.Timescale <= 0 {
		return nil, nil, fmt.Errorf("models: decay timescale must be positive, got %s", d.Timescale)
	}
	x := rs.Arrays[d.Quantity]
	f := math.Exp(-dt.Seconds() / d.Timescale.Seconds())
	return nil, contract.RawFields{d.Quantity: x.Scale(f)}, nil
}
