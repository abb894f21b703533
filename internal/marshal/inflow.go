package marshal

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

// InflowArrays converts a state's quantities into the raw arrays a
// kernel computes on, per the input declaration: values in the
// declared units, axes in the declared order with the wildcard span
// flattened to one axis, keyed by alias when declared. A quantity
// whose array already has the target layout passes its buffer through
// without copying; otherwise the marshaller transposes (a view when
// possible) and broadcast-expands declared dims the source lacks.
func InflowArrays(st *state.State, pr props.Properties) (map[string]*ndarray.Array, error) {
	res, err := ResolveWildcard(st, pr)
	if err != nil {
		return nil, err
	}
	rp, err := pr.Resolved(nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*ndarray.Array, len(rp))
	for _, name := range rp.Names() {
		p := rp[name]
		q, ok := lookup(st, rp, name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", state.ErrMissingQuantity, name)
		}
		raw, err := inflowOne(name, q, p, res)
		if err != nil {
			return nil, err
		}
		out[pr.AliasFor(name)] = raw
	}
	return out, nil
}

func inflowOne(name string, q *state.Quantity, p props.Property, res *Resolution) (*ndarray.Array, error) {
	conv, err := units.Factor(q.Units(), p.Units)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q from %q to %q: %w",
			ErrUnitConversion, name, q.Units(), p.Units, err)
	}
	arr := q.Array()
	if conv.Scale != 1 || conv.Shift != 0 {
		arr = arr.Apply(conv.Apply)
	}

	target := fillWildcard(p.Dims, res)
	qdims := q.Dims()
	aligned := arr
	if !equalStrings(qdims, target) {
		axisMap := make([]int, len(target))
		shape := make([]int, len(target))
		pure := len(qdims) == len(target)
		for t, d := range target {
			s := q.DimIndex(d)
			axisMap[t] = s
			if s >= 0 {
				shape[t] = q.Shape()[s]
				continue
			}
			pure = false
			length, ok := res.Lengths[d]
			if !ok {
				return nil, fmt.Errorf("%w: %q needed by quantity %q", ErrUnknownDimLength, d, name)
			}
			shape[t] = length
		}
		if pure {
			aligned, err = arr.Transpose(axisMap...)
		} else {
			aligned, err = ndarray.Broadcast(arr, axisMap, shape)
		}
		if err != nil {
			return nil, fmt.Errorf("marshal: quantity %q: %w", name, err)
		}
	}

	flat := make([]int, 0, len(p.Dims))
	for _, d := range p.Dims {
		if d == props.Wildcard {
			flat = append(flat, res.SpanLen())
			continue
		}
		length, ok := res.Lengths[d]
		if !ok {
			return nil, fmt.Errorf("%w: %q needed by quantity %q", ErrUnknownDimLength, d, name)
		}
		flat = append(flat, length)
	}
	raw, err := aligned.Reshape(flat...)
	if err != nil {
		return nil, fmt.Errorf("marshal: quantity %q: %w", name, err)
	}
	return raw, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
