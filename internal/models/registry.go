// Package models holds the demo components and the experiment
// registry the CLI runs them through.
package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

// Params carries tunable model parameters from configuration. Missing
// keys fall back to each model's defaults.
type Params map[string]float64

func (p Params) value(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Experiment is a ready-to-run setup: initial conditions, the
// components to integrate, and what the CLI should track.
type Experiment struct {
	Name        string
	Description string

	// Sources are integrated by a scheme chosen at run time;
	// Stepper is set instead when the model advances itself.
	Sources     []contract.TendencySource
	Diagnostics []contract.DiagnosticSource
	Stepper     contract.Stepper

	DefaultStepper string
	Tracked        []string
	Initial        *state.State
}

// Builder constructs an experiment from configuration parameters.
type Builder func(p Params) (*Experiment, error)

var builders = map[string]Builder{}

// Register makes a model available under name, replacing any earlier
// registration.
func Register(name string, b Builder) {
	builders[name] = b
}

// New builds the named model's experiment.
func New(name string, p Params) (*Experiment, error) {
	b, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return b(p)
}

// Names lists the registered models in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("relaxation", newRelaxationExperiment)
	Register("oscillator", newOscillatorExperiment)
	Register("thermostat", newThermostatExperiment)
	Register("decay", newDecayExperiment)
}
