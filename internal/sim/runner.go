// Package sim drives steppers through time and fans simulations out
// across ensemble members.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

// Observer is called once per step with the pre-step state, the
// step's diagnostics already merged in.
type Observer interface {
	Observe(step int, st *state.State)
}

// Config sets the step size and count for a run.
type Config struct {
	Dt    time.Duration
	Steps int
}

// Result summarizes a completed run.
type Result struct {
	Steps   int
	Final   *state.State
	Elapsed time.Duration
}

// Runner advances a state through a stepper, feeding observers along
// the way.
type Runner struct {
	Stepper   contract.Stepper
	Observers []Observer
}

func (r *Runner) AddObserver(o Observer) { r.Observers = append(r.Observers, o) }

func (r *Runner) Run(ctx context.Context, st *state.State, cfg Config) (Result, error) {
	if err := validateConfig(cfg); err != nil {
		return Result{}, err
	}
	start := time.Now()
	result := Result{}
	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			result.Final = st
			result.Elapsed = time.Since(start)
			return result, ctx.Err()
		default:
		}
		diags, next, err := r.Stepper.Step(st, cfg.Dt)
		if err != nil {
			result.Final = st
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("sim: step %d: %w", i, err)
		}
		if len(r.Observers) > 0 {
			observed := st.Copy()
			for name, q := range diags {
				observed.Set(name, q)
			}
			for _, o := range r.Observers {
				o.Observe(i, observed)
			}
		}
		st = advance(st, next, cfg.Dt)
		result.Steps++
	}
	result.Final = st
	result.Elapsed = time.Since(start)
	return result, nil
}

// advance builds the post-step state: next overwrites the stepped
// quantities, everything else carries over unchanged.
func advance(st *state.State, next map[string]*state.Quantity, dt time.Duration) *state.State {
	out := state.New(st.Time.Add(dt))
	for _, name := range st.Names() {
		q, _ := st.Get(name)
		out.Set(name, q)
	}
	for name, q := range next {
		out.Set(name, q)
	}
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("sim: dt must be positive, got %s", cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("sim: steps must be positive, got %d", cfg.Steps)
	}
	return nil
}
