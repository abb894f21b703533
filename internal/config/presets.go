package config

import (
	"sort"
	"time"
)

// Presets are ready-to-run configurations for the built-in models.
var Presets = map[string]*Config{
	"relaxation": {
		Model:     "relaxation",
		Stepper:   StepperAdamsBashforth,
		Order:     3,
		Dt:        Duration(30 * time.Second),
		Steps:     240,
		Track:     []string{"air_temperature"},
		OutputDir: "runs",
		Parameters: map[string]float64{
			"timescale_seconds": 600,
		},
	},
	"oscillator-ab3": {
		Model:     "oscillator",
		Stepper:   StepperAdamsBashforth,
		Order:     3,
		Dt:        Duration(10 * time.Millisecond),
		Steps:     2000,
		Track:     []string{"position", "total_energy"},
		OutputDir: "runs",
	},
	"oscillator-leapfrog": {
		Model:           "oscillator",
		Stepper:         StepperLeapfrog,
		AsselinStrength: 0.05,
		Alpha:           0.5,
		Dt:              Duration(10 * time.Millisecond),
		Steps:           2000,
		Track:           []string{"position", "total_energy"},
		OutputDir:       "runs",
	},
	"thermostat": {
		Model:     "thermostat",
		Stepper:   StepperForwardEuler,
		Dt:        Duration(time.Minute),
		Steps:     360,
		Track:     []string{"air_temperature"},
		OutputDir: "runs",
		Parameters: map[string]float64{
			"target": 295,
		},
	},
}

// GetPreset returns a copy of the named preset, or nil if there is no
// such preset. The copy is safe to modify.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
