package state

import "fmt"

// CopyUntouched inserts into dst, by reference, every quantity of src
// that dst does not already hold.
func CopyUntouched(dst, src *State) {
	for name, q := range src.quantities {
		if _, ok := dst.quantities[name]; !ok {
			dst.quantities[name] = q
		}
	}
}

// Add returns a new state with every quantity of a summed with its
// counterpart in b. Labels and time come from a; addends are converted
// to a's units and aligned to a's dimension order. Every name in a
// must be present in b.
func Add(a, b *State) (*State, error) {
	out := New(a.Time)
	for name, qa := range a.quantities {
		qb, ok := b.quantities[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q absent from addend", ErrMissingQuantity, name)
		}
		sum, err := qa.Add(qb)
		if err != nil {
			return nil, fmt.Errorf("state: adding %q: %w", name, err)
		}
		out.quantities[name] = sum
	}
	return out, nil
}

// Scale returns a new state with every quantity of a multiplied by f.
func Scale(a *State, f float64) *State {
	out := New(a.Time)
	for name, q := range a.quantities {
		out.quantities[name] = &Quantity{
			dims:  append([]string(nil), q.dims...),
			units: q.units,
			arr:   q.arr.Scale(f),
		}
	}
	return out
}
