package models

import (
	"errors"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
)

// Thermostat heats or cools the air temperature field toward a set
// point with a PID controller. The sensed value is the field mean and
// the heating is applied uniformly. Controller memory persists
// between calls, so use one instance per run.
type Thermostat struct {
	Kp     float64 // degK s^-1 per degK of error
	Ki     float64 // degK s^-1 per degK-second of accumulated error
	Kd     float64 // degK s^-1 per degK/s of error change
	Target float64 // degK

	integral float64
	prevErr  float64
	first    bool
}

func NewThermostat(target float64) *Thermostat {
	return &Thermostat{
		Kp:     0.02,
		Ki:     0.001,
		Kd:     0,
		Target: target,
		first:  true,
	}
}

func (th *Thermostat) InputProperties() props.Properties {
	return props.Properties{
		"air_temperature": {Dims: []string{props.Wildcard}, Units: "degK"},
	}
}

func (th *Thermostat) TendencyProperties() props.Properties {
	return props.Properties{
		"air_temperature": {Dims: []string{props.Wildcard}, Units: "degK s^-1"},
	}
}

func (th *Thermostat) DiagnosticProperties() props.Properties {
	return props.Properties{
		"thermostat_heating_rate": {Dims: []string{}, Units: "degK s^-1"},
	}
}

func (th *Thermostat) Compute(rs contract.RawState, dt time.Duration) (contract.RawFields, contract.RawFields, error) {
	temps := rs.Arrays["air_temperature"].Data()
	if len(temps) == 0 {
		return nil, nil, errors.New("models: thermostat needs a temperature field")
	}
	mean := 0.0
	for _, v := range temps {
		mean += v
	}
	mean /= float64(len(temps))

	err := th.Target - mean
	u := th.Kp * err
	if th.first {
		th.first = false
	} else if secs := dt.Seconds(); secs > 0 {
		th.integral += err * secs
		u += th.Ki*th.integral + th.Kd*(err-th.prevErr)/secs
	}
	th.prevErr = err

	return contract.RawFields{"air_temperature": ndarray.Filled(u, len(temps))},
		contract.RawFields{"thermostat_heating_rate": ndarray.Scalar(u)}, nil
}

// Reset clears the controller memory.
func (th *Thermostat) Reset() {
	th.integral = 0
	th.prevErr = 0
	th.first = true
}
