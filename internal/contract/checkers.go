package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/fieldsim/internal/marshal"
	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

// checkInputs verifies every declared input quantity is present in the
// state, under its name or its alias. All absentees are reported in
// one error, sorted.
func checkInputs(st *state.State, pr props.Properties) error {
	var missing []string
	for _, name := range pr.Names() {
		if st.Has(name) {
			continue
		}
		if alias := pr.AliasFor(name); alias != name && st.Has(alias) {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingQuantity, strings.Join(missing, ", "))
}

// rawKeys lists the raw keys a declared quantity may legitimately be
// stored under: declared alias, input alias, then the name itself.
func rawKeys(name string, declared, input props.Properties) []string {
	keys := make([]string, 0, 3)
	if a := declared.AliasFor(name); a != name {
		keys = append(keys, a)
	}
	if a := input.AliasFor(name); a != name {
		keys = append(keys, a)
	}
	return append(keys, name)
}

func lookupRaw(raw RawFields, name string, declared, input props.Properties) (*ndarray.Array, bool) {
	for _, k := range rawKeys(name, declared, input) {
		if arr, ok := raw[k]; ok {
			return arr, true
		}
	}
	return nil, false
}

// checkOutputs verifies a kernel produced exactly the declared set of
// results, alias-aware in both directions, and that every array's
// shape matches what the declaration resolves to for this state.
// Names in ignored are allowed to be absent.
func checkOutputs(raw RawFields, declared, input props.Properties, res *marshal.Resolution, ignored map[string]bool) error {
	var missing []string
	claimed := make(map[string]bool, len(raw))
	for _, name := range declared.Names() {
		found := false
		for _, k := range rawKeys(name, declared, input) {
			if _, ok := raw[k]; ok {
				claimed[k] = true
				found = true
			}
		}
		if !found && !ignored[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingOutput, strings.Join(missing, ", "))
	}
	var extra []string
	for k := range raw {
		if !claimed[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("%w: %s", ErrUnexpectedOutput, strings.Join(extra, ", "))
	}
	for _, name := range declared.Names() {
		arr, ok := lookupRaw(raw, name, declared, input)
		if !ok {
			continue
		}
		if err := checkShape(name, arr, declared, input, res); err != nil {
			return err
		}
	}
	return nil
}

// checkShape compares a raw array against the declared dims resolved
// for this state. Dimensions with no authoritative length are left
// unchecked; the outflow marshaller learns them from the raw shape.
func checkShape(name string, arr *ndarray.Array, declared, input props.Properties, res *marshal.Resolution) error {
	dims, ok := declared.DimsOf(name, input)
	if !ok {
		return nil
	}
	got := arr.Shape()
	if len(got) != len(dims) {
		return fmt.Errorf("%w: quantity %q has shape %v, want rank %d for dims %v",
			ErrShapeMismatch, name, got, len(dims), dims)
	}
	for i, d := range dims {
		want := -1
		if d == props.Wildcard {
			want = res.SpanLen()
		} else if n, known := res.Lengths[d]; known {
			want = n
		}
		if want >= 0 && got[i] != want {
			return fmt.Errorf("%w: quantity %q shape %v does not fit %v (dim %q: got %d, want %d)",
				ErrShapeMismatch, name, got, dims, d, got[i], want)
		}
	}
	return nil
}

// checkCompanionUnits rejects role declarations whose units cannot
// convert to the input declaration for the same quantity. Tendencies
// must be compatible with the input's per-second rate.
func checkCompanionUnits(role string, declared, input props.Properties, tendency bool) error {
	for _, name := range declared.Names() {
		in, ok := input[name]
		if !ok {
			continue
		}
		want := in.Units
		if tendency {
			want = units.TendencyUnits(in.Units)
		}
		compat, err := units.Compatible(declared[name].Units, want)
		if err != nil {
			return fmt.Errorf("%w: %s %q units %q: %v",
				props.ErrInvalidDeclaration, role, name, declared[name].Units, err)
		}
		if !compat {
			return fmt.Errorf("%w: %s %q units %q not compatible with input-derived %q",
				props.ErrInvalidDeclaration, role, name, declared[name].Units, want)
		}
	}
	return nil
}

// rawInputs marshals the state for a kernel call, packing tracers when
// the tracer hook is active.
func rawInputs(st *state.State, inputs props.Properties, packer TracerPacker, tracers []string) (RawState, error) {
	raw, err := marshal.InflowArrays(st, inputs)
	if err != nil {
		return RawState{}, err
	}
	rs := RawState{Arrays: raw, Time: st.Time}
	if packer != nil && len(tracers) > 0 {
		packed, err := packer.Pack(st, tracers)
		if err != nil {
			return RawState{}, err
		}
		rs.Tracers = packed
	}
	return rs, nil
}

func ignoreSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func sameDims(a, b []string) bool {
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
