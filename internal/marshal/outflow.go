package marshal

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
)

// RestoreOptions tunes RestoreQuantities. IgnoreNames skips declared
// quantities (used for synthesized tendency diagnostics produced after
// restore); IgnoreMissing skips declared quantities the kernel did not
// emit instead of failing.
type RestoreOptions struct {
	IgnoreNames   []string
	IgnoreMissing bool
}

func (o *RestoreOptions) ignored() map[string]bool {
	if o == nil || len(o.IgnoreNames) == 0 {
		return nil
	}
	set := make(map[string]bool, len(o.IgnoreNames))
	for _, name := range o.IgnoreNames {
		set[name] = true
	}
	return set
}

// RestoreQuantities wraps a kernel's raw arrays back into labeled
// quantities. The wildcard context is recomputed from the input state
// and input declaration; target dims come from the output property,
// falling back to the input property for the same name. A flattened
// wildcard axis is reshaped back into the concrete dims it absorbed;
// dimension lengths never seen in the input state are learned from the
// raw shape. Raw keys are tried as output alias, then input alias,
// then quantity name.
func RestoreQuantities(raw map[string]*ndarray.Array, outPr props.Properties, inState *state.State, inPr props.Properties, opts *RestoreOptions) (map[string]*state.Quantity, error) {
	res, err := ResolveWildcard(inState, inPr)
	if err != nil {
		return nil, err
	}
	skip := opts.ignored()
	out := make(map[string]*state.Quantity, len(outPr))
	for _, name := range outPr.Names() {
		if skip[name] {
			continue
		}
		arr, ok := rawLookup(raw, name, outPr, inPr)
		if !ok {
			if opts != nil && opts.IgnoreMissing {
				continue
			}
			return nil, fmt.Errorf("marshal: no raw array for quantity %q", name)
		}
		q, err := restoreOne(name, arr, outPr, inPr, res)
		if err != nil {
			return nil, err
		}
		out[name] = q
	}
	return out, nil
}

func rawLookup(raw map[string]*ndarray.Array, name string, outPr, inPr props.Properties) (*ndarray.Array, bool) {
	for _, key := range []string{outPr.AliasFor(name), inPr.AliasFor(name), name} {
		if arr, ok := raw[key]; ok {
			return arr, true
		}
	}
	return nil, false
}

func restoreOne(name string, arr *ndarray.Array, outPr, inPr props.Properties, res *Resolution) (*state.Quantity, error) {
	p := outPr[name]
	dims, ok := outPr.DimsOf(name, inPr)
	if !ok {
		return nil, fmt.Errorf("%w: quantity %q", ErrOutputDimsUnknown, name)
	}
	shape := arr.Shape()
	if len(shape) != len(dims) {
		return nil, fmt.Errorf("%w: quantity %q: raw shape %v for declared dims %v",
			ErrShapeRestore, name, shape, dims)
	}
	wi := props.WildcardIndex(dims)
	if wi < 0 {
		for j, d := range dims {
			if want, known := res.Lengths[d]; known && want != shape[j] {
				return nil, fmt.Errorf("%w: quantity %q: dim %q has length %d, state has %d",
					ErrShapeRestore, name, d, shape[j], want)
			}
		}
		return state.NewQuantity(dims, p.Units, arr)
	}

	target := make([]int, 0, len(dims)-1+len(res.Wildcard))
	for j, d := range dims {
		if j == wi {
			for _, w := range res.Wildcard {
				target = append(target, res.Lengths[w])
			}
			continue
		}
		want, known := res.Lengths[d]
		if !known {
			want = shape[j]
		}
		if want != shape[j] {
			return nil, fmt.Errorf("%w: quantity %q: dim %q has length %d, state has %d",
				ErrShapeRestore, name, d, shape[j], want)
		}
		target = append(target, want)
	}
	if shape[wi] != res.SpanLen() {
		return nil, fmt.Errorf("%w: quantity %q: raw shape %v, target shape %v",
			ErrShapeRestore, name, shape, target)
	}
	restored, err := arr.Reshape(target...)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q: raw shape %v, target shape %v",
			ErrShapeRestore, name, shape, target)
	}
	return state.NewQuantity(fillWildcard(dims, res), p.Units, restored)
}
