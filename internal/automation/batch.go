// Package automation runs scripted batches of simulations from a YAML
// manifest.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fieldsim/internal/config"
	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/metrics"
	"github.com/san-kum/fieldsim/internal/models"
	"github.com/san-kum/fieldsim/internal/sim"
	"github.com/san-kum/fieldsim/internal/storage"
)

// Batch is a named list of runs executed in order.
type Batch struct {
	Name string
	Runs []Run
}

// Run pairs a label with a complete run configuration.
type Run struct {
	Name   string
	Config *config.Config
}

type rawBatch struct {
	Name string   `yaml:"name"`
	Runs []rawRun `yaml:"runs"`
}

type rawRun struct {
	Name   string    `yaml:"name"`
	Preset string    `yaml:"preset"`
	Config yaml.Node `yaml:"config"`
}

// LoadBatch reads a batch manifest. Each run starts from its named
// preset, or from the defaults, and overlays its config block on top,
// so manifests only spell out what differs between runs.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("automation: %w", err)
	}

	var raw rawBatch
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("automation: %s: %w", path, err)
	}
	if len(raw.Runs) == 0 {
		return nil, fmt.Errorf("automation: %s has no runs", path)
	}

	b := &Batch{Name: raw.Name}
	for i, rr := range raw.Runs {
		cfg := config.DefaultConfig()
		if rr.Preset != "" {
			cfg = config.GetPreset(rr.Preset)
			if cfg == nil {
				return nil, fmt.Errorf("automation: run %d: unknown preset %q", i+1, rr.Preset)
			}
		}
		if rr.Config.Kind != 0 {
			if err := rr.Config.Decode(cfg); err != nil {
				return nil, fmt.Errorf("automation: run %d: %w", i+1, err)
			}
		}

		name := rr.Name
		if name == "" {
			name = cfg.Model
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("automation: run %q: %w", name, err)
		}
		b.Runs = append(b.Runs, Run{Name: name, Config: cfg})
	}
	return b, nil
}

// StepperFactory builds the stepper for one configured run.
type StepperFactory func(cfg *config.Config, exp *models.Experiment) (contract.Stepper, error)

// RunResult is the outcome of one batch entry.
type RunResult struct {
	Name   string
	RunID  string
	Result sim.Result
	Series *metrics.Series
}

// RunBatch executes each run in order. When store is non-nil every
// result is saved under it; progress lines go to w.
func RunBatch(ctx context.Context, b *Batch, build StepperFactory, store *storage.Store, w io.Writer) ([]RunResult, error) {
	if build == nil {
		return nil, errors.New("automation: nil stepper factory")
	}
	if w == nil {
		w = io.Discard
	}

	results := make([]RunResult, 0, len(b.Runs))
	for i, run := range b.Runs {
		fmt.Fprintf(w, "run %d/%d: %s\n", i+1, len(b.Runs), run.Name)
		res, err := runOne(ctx, run, build, store)
		if err != nil {
			return results, fmt.Errorf("automation: run %q: %w", run.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func runOne(ctx context.Context, run Run, build StepperFactory, store *storage.Store) (RunResult, error) {
	cfg := run.Config
	if err := cfg.RegisterUnits(); err != nil {
		return RunResult{}, err
	}
	exp, err := models.New(cfg.Model, models.Params(cfg.Parameters))
	if err != nil {
		return RunResult{}, err
	}
	s, err := build(cfg, exp)
	if err != nil {
		return RunResult{}, err
	}

	tracked := cfg.Track
	if len(tracked) == 0 {
		tracked = exp.Tracked
	}
	if len(tracked) == 0 {
		tracked = exp.Initial.Names()
	}

	series := metrics.NewSeries(tracked...)
	runner := sim.Runner{Stepper: s}
	runner.AddObserver(series)
	result, err := runner.Run(ctx, exp.Initial, sim.Config{Dt: cfg.Dt.Std(), Steps: cfg.Steps})
	if err != nil {
		return RunResult{}, err
	}

	out := RunResult{Name: run.Name, Result: result, Series: series}
	if store != nil {
		runID, err := store.SaveRun(run.Name, cfg, result, series)
		if err != nil {
			return RunResult{}, err
		}
		out.RunID = runID
	}
	return out, nil
}
