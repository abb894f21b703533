package metrics

import (
	"math"

	"github.com/san-kum/fieldsim/internal/state"
)

// Drift reports how far a conserved quantity's total has wandered
// from its value at the first observed step, as a relative error.
type Drift struct {
	name     string
	quantity string
	samples  int
	initial  float64
	current  float64
	maxDrift float64
}

func NewDrift(quantity string) *Drift {
	return &Drift{name: "drift", quantity: quantity}
}

func (d *Drift) Name() string { return d.name }

// Quantity returns the state name this metric watches.
func (d *Drift) Quantity() string { return d.quantity }

func (d *Drift) Observe(step int, st *state.State) {
	q, ok := st.Get(d.quantity)
	if !ok {
		return
	}
	total := 0.0
	for _, v := range q.Values() {
		total += v
	}
	if d.samples == 0 {
		d.initial = total
	}
	d.current = total
	d.samples++

	if d.initial != 0 {
		drift := math.Abs(total-d.initial) / math.Abs(d.initial)
		d.maxDrift = math.Max(d.maxDrift, drift)
	}
}

// Value returns the largest relative drift seen so far.
func (d *Drift) Value() float64 {
	return d.maxDrift
}

func (d *Drift) Reset() {
	d.samples = 0
	d.initial = 0
	d.current = 0
	d.maxDrift = 0
}
