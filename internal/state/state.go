package state

import (
	"sort"
	"time"
)

// State is a collection of named quantities at a point in model time.
type State struct {
	Time       time.Time
	quantities map[string]*Quantity
}

// New returns an empty state at the given time.
func New(t time.Time) *State {
	return &State{Time: t, quantities: make(map[string]*Quantity)}
}

// Set stores a quantity under name, replacing any previous one.
func (s *State) Set(name string, q *Quantity) {
	s.quantities[name] = q
}

// Get returns the quantity stored under name.
func (s *State) Get(name string) (*Quantity, bool) {
	q, ok := s.quantities[name]
	return q, ok
}

// Has reports whether a quantity is stored under name.
func (s *State) Has(name string) bool {
	_, ok := s.quantities[name]
	return ok
}

// Delete removes the quantity stored under name, if any.
func (s *State) Delete(name string) {
	delete(s.quantities, name)
}

// Len returns the number of quantities.
func (s *State) Len() int { return len(s.quantities) }

// Names returns the quantity names in sorted order.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.quantities))
	for name := range s.quantities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copy returns a state with a new name table sharing the same
// quantities.
func (s *State) Copy() *State {
	out := New(s.Time)
	for name, q := range s.quantities {
		out.quantities[name] = q
	}
	return out
}

// DeepCopy returns a state with cloned quantities.
func (s *State) DeepCopy() *State {
	out := New(s.Time)
	for name, q := range s.quantities {
		out.quantities[name] = q.Clone()
	}
	return out
}
