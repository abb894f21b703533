package sim

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/fieldsim/internal/contract"
	"github.com/san-kum/fieldsim/internal/state"
)

// RunEnsemble runs one simulation per member over a fixed worker
// pool. Component instances carry per-run memory, so every member
// gets a stepper of its own from newStepper. Results come back in
// member order; the first error aborts the batch.
func RunEnsemble(ctx context.Context, members []*state.State, cfg Config, newStepper func() (contract.Stepper, error)) ([]Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	results := make([]Result, len(members))
	errs := make([]error, len(members))

	workers := runtime.NumCPU()
	if workers > len(members) {
		workers = len(members)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				s, err := newStepper()
				if err != nil {
					errs[idx] = err
					continue
				}
				r := Runner{Stepper: s}
				results[idx], errs[idx] = r.Run(ctx, members[idx], cfg)
			}
		}()
	}
	for i := range members {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
