// Package metrics provides run observers that reduce tracked
// quantities to summary numbers.
package metrics

import (
	"github.com/san-kum/fieldsim/internal/state"
)

// Range tracks the minimum, maximum and mean of one quantity across
// every observed step.
type Range struct {
	name     string
	quantity string
	samples  int
	min      float64
	max      float64
	sum      float64
}

func NewRange(quantity string) *Range {
	return &Range{name: "range", quantity: quantity}
}

func (r *Range) Name() string { return r.name }

// Quantity returns the state name this metric reduces.
func (r *Range) Quantity() string { return r.quantity }

func (r *Range) Observe(step int, st *state.State) {
	q, ok := st.Get(r.quantity)
	if !ok {
		return
	}
	for _, v := range q.Values() {
		if r.samples == 0 {
			r.min = v
			r.max = v
		} else {
			if v < r.min {
				r.min = v
			}
			if v > r.max {
				r.max = v
			}
		}
		r.sum += v
		r.samples++
	}
}

func (r *Range) Min() float64 { return r.min }
func (r *Range) Max() float64 { return r.max }

func (r *Range) Mean() float64 {
	if r.samples == 0 {
		return 0
	}
	return r.sum / float64(r.samples)
}

func (r *Range) Reset() {
	r.samples = 0
	r.min = 0
	r.max = 0
	r.sum = 0
}
