package props

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/units"
)

// CombineDims merges two dims declarations for the same quantity into
// one that satisfies both:
//
//   - identical lists pass through unchanged;
//   - when both carry the wildcard, the named dims form a first-seen
//     union, new names spliced immediately before the wildcard;
//   - when only one carries the wildcard, every named dim on the
//     wildcard side must appear in the explicit list; the explicit
//     extras are spliced immediately before the wildcard;
//   - when neither does, the name sets must be equal and the left
//     order wins.
//
// Splicing before the wildcard keeps the merge associative over any
// left-fold of pairwise-combinable declarations.
func CombineDims(a, b []string) ([]string, error) {
	if equalDims(a, b) {
		return append([]string(nil), a...), nil
	}
	wa, wb := HasWildcard(a), HasWildcard(b)
	switch {
	case wa && wb:
		return spliceUnion(a, b), nil
	case wa || wb:
		w, e := a, b
		if wb {
			w, e = b, a
		}
		have := toSet(e)
		for _, d := range w {
			if d != Wildcard && !have[d] {
				return nil, fmt.Errorf("%w: %v and %v", ErrIncompatibleDims, a, b)
			}
		}
		return spliceUnion(w, e), nil
	default:
		if !sameSet(a, b) {
			return nil, fmt.Errorf("%w: %v and %v", ErrIncompatibleDims, a, b)
		}
		return append([]string(nil), a...), nil
	}
}

// spliceUnion keeps a's order and wildcard, inserting b's unseen named
// dims immediately before the wildcard, in b's order.
func spliceUnion(a, b []string) []string {
	out := append([]string(nil), a...)
	wi := WildcardIndex(out)
	have := toSet(out)
	for _, d := range b {
		if d == Wildcard || have[d] {
			continue
		}
		out = insertAt(out, wi, d)
		wi++
		have[d] = true
	}
	return out
}

func insertAt(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func toSet(dims []string) map[string]bool {
	set := make(map[string]bool, len(dims))
	for _, d := range dims {
		set[d] = true
	}
	return set
}

func equalDims(a, b []string) bool {
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

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := toSet(a)
	for _, d := range b {
		if !set[d] {
			return false
		}
	}
	return true
}

// Combine folds several declarations of the same role into one.
// The first occurrence of a quantity is copied (dims borrowed from
// input when not declared); repeats must carry compatible units and
// their dims are merged with CombineDims.
func Combine(list []Properties, input Properties) (Properties, error) {
	out := Properties{}
	for _, ps := range list {
		for _, name := range ps.Names() {
			p := ps[name]
			dims := p.Dims
			if dims == nil {
				ip, ok := input[name]
				if !ok || ip.Dims == nil {
					return nil, fmt.Errorf("%w: quantity %q: no dims to combine", ErrInvalidDeclaration, name)
				}
				dims = ip.Dims
			}
			ex, ok := out[name]
			if !ok {
				out[name] = Property{
					Dims:  append([]string(nil), dims...),
					Units: p.Units,
					Alias: p.Alias,
				}
				continue
			}
			compat, err := units.Compatible(ex.Units, p.Units)
			if err != nil {
				return nil, fmt.Errorf("props: quantity %q: %w", name, err)
			}
			if !compat {
				return nil, fmt.Errorf("%w: cannot combine %q and %q for quantity %q",
					units.ErrIncompatibleUnits, ex.Units, p.Units, name)
			}
			merged, err := CombineDims(ex.Dims, dims)
			if err != nil {
				return nil, fmt.Errorf("props: quantity %q: %w", name, err)
			}
			ex.Dims = merged
			out[name] = ex
		}
	}
	return out, nil
}
