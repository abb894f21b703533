// Package marshal moves quantities between the labeled state
// representation and the raw numeric arrays kernels compute on:
// wildcard resolution, inflow (state to raw) and outflow (raw back to
// state).
package marshal

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// Resolution is the outcome of matching a declaration against a
// state: the concrete dims the wildcard spans, in absorption order,
// and the authoritative length of every dimension seen.
type Resolution struct {
	Wildcard []string
	Lengths  map[string]int
	Active   bool
}

// SpanLen returns the flattened length of the wildcard span.
func (r *Resolution) SpanLen() int {
	n := 1
	for _, d := range r.Wildcard {
		n *= r.Lengths[d]
	}
	return n
}

// ResolveWildcard matches a declaration against a state. Declared
// quantities are visited in sorted name order and their state arrays'
// axes in axis order, so the wildcard absorption order does not depend
// on declaration order. Dimensions claimed explicitly by the owning
// property are skipped; an unclaimed axis on a wildcard-less property
// is an error, as is a dimension appearing with two lengths.
// Quantities absent from the state are skipped; presence is the
// checker's job.
func ResolveWildcard(st *state.State, pr props.Properties) (*Resolution, error) {
	rp, err := pr.Resolved(nil)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Lengths: make(map[string]int)}
	inSpan := make(map[string]bool)
	for _, name := range rp.Names() {
		p := rp[name]
		hasWild := props.HasWildcard(p.Dims)
		if hasWild {
			res.Active = true
		}
		q, ok := lookup(st, rp, name)
		if !ok {
			continue
		}
		claimed := make(map[string]bool, len(p.Dims))
		for _, d := range p.Dims {
			if d != props.Wildcard {
				claimed[d] = true
			}
		}
		shape := q.Shape()
		for i, d := range q.Dims() {
			if prev, ok := res.Lengths[d]; ok && prev != shape[i] {
				return nil, fmt.Errorf("%w: %q has length %d and %d", ErrDimLengthConflict, d, prev, shape[i])
			}
			res.Lengths[d] = shape[i]
			if claimed[d] {
				continue
			}
			if !hasWild {
				return nil, fmt.Errorf("%w: %q on quantity %q", ErrUnexpectedDimension, d, name)
			}
			if !inSpan[d] {
				inSpan[d] = true
				res.Wildcard = append(res.Wildcard, d)
			}
		}
	}
	return res, nil
}

// lookup finds a declared quantity in the state by name, falling back
// to its alias.
func lookup(st *state.State, pr props.Properties, name string) (*state.Quantity, bool) {
	if q, ok := st.Get(name); ok {
		return q, true
	}
	if alias := pr.AliasFor(name); alias != name {
		return st.Get(alias)
	}
	return nil, false
}

// fillWildcard substitutes the resolved span into a dims list.
func fillWildcard(dims []string, res *Resolution) []string {
	wi := props.WildcardIndex(dims)
	if wi < 0 {
		return append([]string(nil), dims...)
	}
	out := make([]string, 0, len(dims)-1+len(res.Wildcard))
	out = append(out, dims[:wi]...)
	out = append(out, res.Wildcard...)
	out = append(out, dims[wi+1:]...)
	return out
}
