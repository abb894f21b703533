// Package optim searches model parameter space for the settings that
// minimize a score, one full run per candidate.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Score evaluates one parameter assignment. Lower is better.
type Score func(params map[string]float64) (float64, error)

// GridSearch evaluates the cross product of per-parameter candidate
// values.
type GridSearch struct {
	names  []string
	values [][]float64
}

// NewGridSearch pairs parameter names with their candidate values.
func NewGridSearch(names []string, values [][]float64) (*GridSearch, error) {
	if len(names) == 0 {
		return nil, errors.New("optim: no parameters to search")
	}
	if len(names) != len(values) {
		return nil, fmt.Errorf("optim: %d parameters but %d value lists", len(names), len(values))
	}
	for i, vs := range values {
		if len(vs) == 0 {
			return nil, fmt.Errorf("optim: no candidate values for %s", names[i])
		}
	}
	return &GridSearch{names: names, values: values}, nil
}

// Result is the best assignment a search found.
type Result struct {
	Params map[string]float64
	Value  float64
}

// Search scores every combination and returns the lowest. A scoring
// error or context cancellation aborts the whole search.
func (g *GridSearch) Search(ctx context.Context, score Score) (Result, error) {
	best := Result{Value: math.Inf(1)}
	current := make(map[string]float64, len(g.names))
	if err := g.search(ctx, 0, current, score, &best); err != nil {
		return Result{}, err
	}
	return best, nil
}

func (g *GridSearch) search(ctx context.Context, depth int, current map[string]float64, score Score, best *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.names) {
		val, err := score(current)
		if err != nil {
			return err
		}
		if val < best.Value {
			params := make(map[string]float64, len(current))
			for k, v := range current {
				params[k] = v
			}
			*best = Result{Params: params, Value: val}
		}
		return nil
	}

	name := g.names[depth]
	for _, v := range g.values[depth] {
		current[name] = v
		if err := g.search(ctx, depth+1, current, score, best); err != nil {
			return err
		}
	}
	delete(current, name)
	return nil
}

// Span returns n evenly spaced values from lo to hi inclusive.
func Span(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
