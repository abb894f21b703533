// Package config loads and saves run configurations for fieldsim.
//
// Configurations are plain YAML files. Unset fields keep the values
// from DefaultConfig, so a file only needs to name what it changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fieldsim/internal/units"
)

// Duration wraps time.Duration so YAML files can spell timesteps the
// human way ("250ms", "1m30s") instead of as nanosecond integers.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML emits the duration in time.Duration.String form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML parses a duration string such as "500ms" or "2h".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Stepper names accepted by Config.Stepper.
const (
	StepperForwardEuler   = "forward_euler"
	StepperAdamsBashforth = "adams_bashforth"
	StepperSSPRK          = "ssprk"
	StepperLeapfrog       = "leapfrog"
)

// Config describes one simulation run: which model to build, how to
// step it, and what to record along the way.
type Config struct {
	// Model names a registered experiment builder.
	Model string `yaml:"model"`

	// Stepper selects the time differencing scheme. Empty means the
	// model's preferred scheme.
	Stepper string `yaml:"stepper"`

	// Order is the Adams-Bashforth order (1..4). Ignored by other
	// steppers.
	Order int `yaml:"order"`

	// Stages is the SSP Runge-Kutta stage count (2 or 3). Ignored by
	// other steppers.
	Stages int `yaml:"stages"`

	// AsselinStrength and Alpha tune the leapfrog time filter.
	AsselinStrength float64 `yaml:"asselin_strength"`
	Alpha           float64 `yaml:"alpha"`

	// TendenciesInDiagnostics asks the stepper to report the tendency
	// it applied to each output as an extra diagnostic.
	TendenciesInDiagnostics bool `yaml:"tendencies_in_diagnostics"`

	// Dt is the timestep, Steps the number of steps to take.
	Dt    Duration `yaml:"dt"`
	Steps int      `yaml:"steps"`

	// Track lists quantity names whose means are recorded each step.
	// Empty means the model's default tracked set.
	Track []string `yaml:"track"`

	// OutputDir is where saved runs land.
	OutputDir string `yaml:"output_dir"`

	// UnitAliases defines extra unit names before the run starts, as
	// alias -> definition pairs ("knot": "0.514444 m s^-1").
	UnitAliases map[string]string `yaml:"unit_aliases,omitempty"`

	// Parameters are model tunables passed to the experiment builder.
	Parameters map[string]float64 `yaml:"parameters,omitempty"`
}

// DefaultConfig returns the baseline configuration. Loaded files are
// applied on top of it.
func DefaultConfig() *Config {
	return &Config{
		Model:           "oscillator",
		Stepper:         StepperSSPRK,
		Order:           3,
		Stages:          3,
		AsselinStrength: 0.05,
		Alpha:           0.5,
		Dt:              Duration(100 * time.Millisecond),
		Steps:           500,
		OutputDir:       "runs",
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields that later stages would only reject with
// a less helpful error. Model names are checked at build time by the
// experiment registry, not here.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("config: model must be set")
	}
	switch c.Stepper {
	case "", StepperForwardEuler, StepperAdamsBashforth, StepperSSPRK, StepperLeapfrog:
	default:
		return fmt.Errorf("config: unknown stepper %q", c.Stepper)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %s", c.Dt)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("config: steps must be positive, got %d", c.Steps)
	}
	if c.Stepper == StepperAdamsBashforth && (c.Order < 1 || c.Order > 4) {
		return fmt.Errorf("config: order must be between 1 and 4, got %d", c.Order)
	}
	if c.Stepper == StepperSSPRK && c.Stages != 2 && c.Stages != 3 {
		return fmt.Errorf("config: stages must be 2 or 3, got %d", c.Stages)
	}
	if c.Stepper == StepperLeapfrog {
		if c.AsselinStrength < 0 || c.AsselinStrength >= 1 {
			return fmt.Errorf("config: asselin_strength must be in [0, 1), got %g", c.AsselinStrength)
		}
		if c.Alpha < 0 || c.Alpha > 1 {
			return fmt.Errorf("config: alpha must be in [0, 1], got %g", c.Alpha)
		}
	}
	return nil
}

// RegisterUnits adds the config's unit aliases to the default unit
// registry. Call once before building the experiment.
func (c *Config) RegisterUnits() error {
	names := make([]string, 0, len(c.UnitAliases))
	for name := range c.UnitAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := units.Register(name, c.UnitAliases[name]); err != nil {
			return fmt.Errorf("config: unit alias %q: %w", name, err)
		}
	}
	return nil
}

// Clone returns a deep copy, so presets and defaults can be tweaked
// without touching the shared originals.
func (c *Config) Clone() *Config {
	out := *c
	if c.Track != nil {
		out.Track = append([]string(nil), c.Track...)
	}
	if c.UnitAliases != nil {
		out.UnitAliases = make(map[string]string, len(c.UnitAliases))
		for k, v := range c.UnitAliases {
			out.UnitAliases[k] = v
		}
	}
	if c.Parameters != nil {
		out.Parameters = make(map[string]float64, len(c.Parameters))
		for k, v := range c.Parameters {
			out.Parameters[k] = v
		}
	}
	return &out
}
