package models

import (
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

var startTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func setQuantity(st *state.State, name string, dims []string, unitstr string, values []float64) error {
	q, err := state.FromValues(dims, unitstr, []int{len(values)}, values)
	if err != nil {
		return fmt.Errorf("models: building %s: %w", name, err)
	}
	st.Set(name, q)
	return nil
}

func newRelaxationExperiment(p Params) (*Experiment, error) {
	tau := p.value("timescale_seconds", 600)
	kernel := NewNewtonianRelaxation("air_temperature", "degK")
	comp, err := contract.NewTendencyComponent(kernel)
	if err != nil {
		return nil, err
	}
	st := state.New(startTime)
	if err := setQuantity(st, kernel.Quantity, []string{"z"}, "degK", []float64{270, 280, 290}); err != nil {
		return nil, err
	}
	if err := setQuantity(st, kernel.EquilibriumName(), []string{"z"}, "degK", []float64{275, 275, 275}); err != nil {
		return nil, err
	}
	if err := setQuantity(st, kernel.TimescaleName(), []string{"z"}, "s", []float64{tau, tau, tau}); err != nil {
		return nil, err
	}
	return &Experiment{
		Name:           "relaxation",
		Description:    "Newtonian relaxation of a three-level temperature profile",
		Sources:        []contract.TendencySource{comp},
		DefaultStepper: "adams_bashforth",
		Tracked:        []string{"air_temperature"},
		Initial:        st,
	}, nil
}

func newOscillatorExperiment(p Params) (*Experiment, error) {
	modes := int(p.value("modes", 8))
	if modes < 1 {
		return nil, fmt.Errorf("models: oscillator needs at least one mode, got %d", modes)
	}
	osc := NewOscillator()
	osc.Stiffness = p.value("stiffness", osc.Stiffness)
	osc.Mass = p.value("mass", osc.Mass)
	osc.Damping = p.value("damping", osc.Damping)
	comp, err := contract.NewTendencyComponent(osc)
	if err != nil {
		return nil, err
	}
	energy := NewEnergyDiagnostic()
	energy.Stiffness = osc.Stiffness
	energy.Mass = osc.Mass
	diag, err := contract.NewDiagnosticComponent(energy)
	if err != nil {
		return nil, err
	}
	// pluck the first mass
	pos := make([]float64, modes)
	pos[0] = 1
	st := state.New(startTime)
	if err := setQuantity(st, "position", []string{"mode"}, "m", pos); err != nil {
		return nil, err
	}
	if err := setQuantity(st, "velocity", []string{"mode"}, "m s^-1", make([]float64, modes)); err != nil {
		return nil, err
	}
	return &Experiment{
		Name:           "oscillator",
		Description:    "spring-mass chain with both ends anchored",
		Sources:        []contract.TendencySource{comp},
		Diagnostics:    []contract.DiagnosticSource{diag},
		DefaultStepper: "ssprk",
		Tracked:        []string{"position", TotalEnergyName},
		Initial:        st,
	}, nil
}

func newThermostatExperiment(p Params) (*Experiment, error) {
	th := NewThermostat(p.value("target", 295))
	th.Kp = p.value("kp", th.Kp)
	th.Ki = p.value("ki", th.Ki)
	th.Kd = p.value("kd", th.Kd)
	comp, err := contract.NewImplicitTendencyComponent(th)
	if err != nil {
		return nil, err
	}
	st := state.New(startTime)
	if err := setQuantity(st, "air_temperature", []string{"z"}, "degK", []float64{284, 285, 286}); err != nil {
		return nil, err
	}
	return &Experiment{
		Name:           "thermostat",
		Description:    "PID heating toward a set point",
		Sources:        []contract.TendencySource{comp},
		DefaultStepper: "forward_euler",
		Tracked:        []string{"air_temperature"},
		Initial:        st,
	}, nil
}

func newDecayExperiment(p Params) (*Experiment, error) {
	tau := time.Duration(p.value("timescale_seconds", 120) * float64(time.Second))
	kernel := NewExponentialDecay("cloud_ice_mass", "kg", tau)
	step, err := contract.NewStepperComponent(kernel, contract.WithTendenciesInDiagnostics())
	if err != nil {
		return nil, err
	}
	st := state.New(startTime)
	if err := setQuantity(st, kernel.Quantity, []string{"x"}, "kg", []float64{5, 3, 1}); err != nil {
		return nil, err
	}
	return &Experiment{
		Name:        "decay",
		Description: "exponential decay stepped along its exact curve",
		Stepper:     step,
		Tracked:     []string{"cloud_ice_mass"},
		Initial:     st,
	}, nil
}
