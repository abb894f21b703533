package metrics

import (
	"math"
	"time"

	"github.com/san-kum/fieldsim/internal/state"
)

// Series records the mean of each named quantity at every observed
// step, keeping the full history in memory. It backs CSV export, the
// terminal plots and the live view.
type Series struct {
	name       string
	quantities []string
	steps      []int
	times      []time.Time
	values     map[string][]float64
}

func NewSeries(quantities ...string) *Series {
	return &Series{
		name:       "series",
		quantities: append([]string(nil), quantities...),
		values:     make(map[string][]float64, len(quantities)),
	}
}

func (s *Series) Name() string { return s.name }

// Quantities returns the recorded names in declaration order.
func (s *Series) Quantities() []string {
	return append([]string(nil), s.quantities...)
}

func (s *Series) Observe(step int, st *state.State) {
	s.steps = append(s.steps, step)
	s.times = append(s.times, st.Time)
	for _, name := range s.quantities {
		s.values[name] = append(s.values[name], meanOf(st, name))
	}
}

// meanOf averages a quantity's values. Absent or empty quantities
// record NaN so the columns stay aligned across steps.
func meanOf(st *state.State, name string) float64 {
	q, ok := st.Get(name)
	if !ok {
		return math.NaN()
	}
	vals := q.Values()
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Len returns the number of observed steps.
func (s *Series) Len() int { return len(s.steps) }

func (s *Series) Steps() []int       { return s.steps }
func (s *Series) Times() []time.Time { return s.times }

// Values returns the per-step means recorded for one quantity, nil if
// it was never tracked.
func (s *Series) Values(quantity string) []float64 { return s.values[quantity] }

// Last returns the most recent mean for the quantity, NaN before the
// first observation.
func (s *Series) Last(quantity string) float64 {
	col := s.values[quantity]
	if len(col) == 0 {
		return math.NaN()
	}
	return col[len(col)-1]
}

func (s *Series) Reset() {
	s.steps = nil
	s.times = nil
	s.values = make(map[string][]float64, len(s.quantities))
}
