package marshal

import (
	"errors"
	"testing"
	"time"

	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/props"
	"github.com/san-kum/fieldsim/internal/state"
	"github.com/san-kum/fieldsim/internal/units"
)

func quantity(t *testing.T, dims []string, unitstr string, shape []int, values []float64) *state.Quantity {
	t.Helper()
	q, err := state.FromValues(dims, unitstr, shape, values)
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	return q
}

func sliceEqual(a, b []float64) bool {
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

func intsEqual(a, b []int) bool {
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

func TestResolveWildcard(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat", "lon"}, "degK", []int{2, 3}, make([]float64, 6)))
	st.Set("wind", quantity(t, []string{"lat", "lon", "mid"}, "m s^-1", []int{2, 3, 4}, make([]float64, 24)))
	pr := props.Properties{
		"temp": {Dims: []string{"*"}, Units: "degK"},
		"wind": {Dims: []string{"*", "mid"}, Units: "m s^-1"},
	}
	res, err := ResolveWildcard(st, pr)
	if err != nil {
		t.Fatalf("ResolveWildcard: %v", err)
	}
	if !res.Active {
		t.Error("expected Active")
	}
	want := []string{"lat", "lon"}
	if len(res.Wildcard) != 2 || res.Wildcard[0] != want[0] || res.Wildcard[1] != want[1] {
		t.Errorf("expected wildcard %v, got %v", want, res.Wildcard)
	}
	for d, n := range map[string]int{"lat": 2, "lon": 3, "mid": 4} {
		if res.Lengths[d] != n {
			t.Errorf("length of %q: expected %d, got %d", d, n, res.Lengths[d])
		}
	}
	if res.SpanLen() != 6 {
		t.Errorf("expected span length 6, got %d", res.SpanLen())
	}
}

func TestResolveWildcardAbsorptionOrder(t *testing.T) {
	// The first quantity in sorted name order sets the span order from
	// its own axis order.
	st := state.New(time.Time{})
	st.Set("a_temp", quantity(t, []string{"lon", "lat"}, "degK", []int{3, 2}, make([]float64, 6)))
	st.Set("b_wind", quantity(t, []string{"lat", "lon"}, "m s^-1", []int{2, 3}, make([]float64, 6)))
	pr := props.Properties{
		"a_temp": {Dims: []string{"*"}, Units: "degK"},
		"b_wind": {Dims: []string{"*"}, Units: "m s^-1"},
	}
	res, err := ResolveWildcard(st, pr)
	if err != nil {
		t.Fatalf("ResolveWildcard: %v", err)
	}
	if len(res.Wildcard) != 2 || res.Wildcard[0] != "lon" || res.Wildcard[1] != "lat" {
		t.Errorf("expected [lon lat], got %v", res.Wildcard)
	}
}

func TestResolveWildcardErrors(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat"}, "degK", []int{2}, []float64{0, 0}))
	st.Set("wind", quantity(t, []string{"lat"}, "m s^-1", []int{5}, make([]float64, 5)))
	pr := props.Properties{
		"temp": {Dims: []string{"*"}, Units: "degK"},
		"wind": {Dims: []string{"*"}, Units: "m s^-1"},
	}
	if _, err := ResolveWildcard(st, pr); !errors.Is(err, ErrDimLengthConflict) {
		t.Errorf("expected ErrDimLengthConflict, got %v", err)
	}

	st2 := state.New(time.Time{})
	st2.Set("temp", quantity(t, []string{"lat", "lon"}, "degK", []int{2, 3}, make([]float64, 6)))
	pr2 := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK"}}
	if _, err := ResolveWildcard(st2, pr2); !errors.Is(err, ErrUnexpectedDimension) {
		t.Errorf("expected ErrUnexpectedDimension, got %v", err)
	}
}

func TestResolveWildcardInactive(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat"}, "degK", []int{2}, []float64{1, 2}))
	pr := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK"}}
	res, err := ResolveWildcard(st, pr)
	if err != nil {
		t.Fatalf("ResolveWildcard: %v", err)
	}
	if res.Active || len(res.Wildcard) != 0 {
		t.Errorf("expected inactive empty resolution, got %+v", res)
	}
	// Declared but absent quantities are skipped, not errors.
	pr["ghost"] = props.Property{Dims: []string{"*"}, Units: "m"}
	if _, err := ResolveWildcard(st, pr); err != nil {
		t.Errorf("absent quantity must not fail resolution: %v", err)
	}
}

func TestInflowPassThroughSharesBuffer(t *testing.T) {
	q := quantity(t, []string{"lat", "lon"}, "degK", []int{2, 3}, []float64{0, 1, 2, 10, 11, 12})
	st := state.New(time.Time{})
	st.Set("temp", q)
	pr := props.Properties{"temp": {Dims: []string{"lat", "lon"}, Units: "degK"}}
	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	arr := raw["temp"]
	if arr == nil {
		t.Fatal("expected raw array keyed by name")
	}
	arr.Data()[0] = 99
	if q.Values()[0] != 99 {
		t.Error("matching layout must pass the buffer through without copying")
	}
}

func TestInflowWildcardFlattenSharesBuffer(t *testing.T) {
	q := quantity(t, []string{"lat", "lon"}, "degK", []int{2, 3}, []float64{0, 1, 2, 10, 11, 12})
	st := state.New(time.Time{})
	st.Set("temp", q)
	pr := props.Properties{"temp": {Dims: []string{"*"}, Units: "degK"}}
	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	arr := raw["temp"]
	if !intsEqual(arr.Shape(), []int{6}) {
		t.Fatalf("expected flattened shape [6], got %v", arr.Shape())
	}
	arr.Data()[3] = 77
	if q.Values()[3] != 77 {
		t.Error("flattening a contiguous array must not copy")
	}
}

func TestInflowTranspose(t *testing.T) {
	q := quantity(t, []string{"lat", "lon"}, "degK", []int{2, 3}, []float64{0, 1, 2, 10, 11, 12})
	st := state.New(time.Time{})
	st.Set("temp", q)
	pr := props.Properties{"temp": {Dims: []string{"lon", "lat"}, Units: "degK"}}
	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	arr := raw["temp"]
	if !intsEqual(arr.Shape(), []int{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", arr.Shape())
	}
	if !sliceEqual(arr.Data(), []float64{0, 10, 1, 11, 2, 12}) {
		t.Errorf("expected transposed values, got %v", arr.Data())
	}
}

func TestInflowBroadcast(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("full", quantity(t, []string{"lat", "lon"}, "m", []int{2, 3}, make([]float64, 6)))
	st.Set("partial", quantity(t, []string{"lon"}, "m", []int{3}, []float64{1, 2, 3}))
	pr := props.Properties{
		"full":    {Dims: []string{"lat", "lon"}, Units: "m"},
		"partial": {Dims: []string{"lat", "lon"}, Units: "m"},
	}
	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	arr := raw["partial"]
	if !intsEqual(arr.Shape(), []int{2, 3}) {
		t.Fatalf("expected shape [2 3], got %v", arr.Shape())
	}
	if !sliceEqual(arr.Data(), []float64{1, 2, 3, 1, 2, 3}) {
		t.Errorf("expected replicated rows, got %v", arr.Data())
	}
}

func TestInflowUnitConversion(t *testing.T) {
	q := quantity(t, []string{"x"}, "km", []int{2}, []float64{1, 2})
	st := state.New(time.Time{})
	st.Set("dist", q)
	pr := props.Properties{"dist": {Dims: []string{"x"}, Units: "m"}}
	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	if !sliceEqual(raw["dist"].Data(), []float64{1000, 2000}) {
		t.Errorf("expected converted values, got %v", raw["dist"].Data())
	}
	raw["dist"].Data()[0] = -1
	if q.Values()[0] != 1 {
		t.Error("conversion must not write through to the state")
	}

	bad := props.Properties{"dist": {Dims: []string{"x"}, Units: "s"}}
	_, err = InflowArrays(st, bad)
	if !errors.Is(err, ErrUnitConversion) {
		t.Errorf("expected ErrUnitConversion, got %v", err)
	}
	if !errors.Is(err, units.ErrIncompatibleUnits) {
		t.Errorf("expected wrapped ErrIncompatibleUnits, got %v", err)
	}
}

func TestInflowAliasKeying(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("air_temperature", quantity(t, []string{"x"}, "degK", []int{2}, []float64{1, 2}))
	pr := props.Properties{"air_temperature": {Dims: []string{"x"}, Units: "degK", Alias: "T"}}
	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	if _, ok := raw["T"]; !ok {
		t.Error("expected alias key T")
	}
	if _, ok := raw["air_temperature"]; ok {
		t.Error("aliased quantity must not also be keyed by name")
	}
}

func TestInflowUnknownDimLength(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("partial", quantity(t, []string{"lon"}, "m", []int{3}, []float64{1, 2, 3}))
	pr := props.Properties{"partial": {Dims: []string{"lat", "lon"}, Units: "m"}}
	if _, err := InflowArrays(st, pr); !errors.Is(err, ErrUnknownDimLength) {
		t.Errorf("expected ErrUnknownDimLength, got %v", err)
	}
}

func TestInflowMissingQuantity(t *testing.T) {
	st := state.New(time.Time{})
	pr := props.Properties{"ghost": {Dims: []string{"x"}, Units: "m"}}
	if _, err := InflowArrays(st, pr); !errors.Is(err, state.ErrMissingQuantity) {
		t.Errorf("expected ErrMissingQuantity, got %v", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	values := make([]float64, 24)
	for i := range values {
		values[i] = float64(i)
	}
	q := quantity(t, []string{"lat", "lon", "mid"}, "degK", []int{2, 3, 4}, values)
	st := state.New(time.Time{})
	st.Set("temp", q)
	pr := props.Properties{"temp": {Dims: []string{"*", "mid"}, Units: "degK"}}

	raw, err := InflowArrays(st, pr)
	if err != nil {
		t.Fatalf("InflowArrays: %v", err)
	}
	if !intsEqual(raw["temp"].Shape(), []int{6, 4}) {
		t.Fatalf("expected raw shape [6 4], got %v", raw["temp"].Shape())
	}

	restored, err := RestoreQuantities(raw, pr, st, pr, nil)
	if err != nil {
		t.Fatalf("RestoreQuantities: %v", err)
	}
	rq := restored["temp"]
	if rq == nil {
		t.Fatal("expected temp in restored set")
	}
	dims := rq.Dims()
	if len(dims) != 3 || dims[0] != "lat" || dims[1] != "lon" || dims[2] != "mid" {
		t.Errorf("expected dims [lat lon mid], got %v", dims)
	}
	if !intsEqual(rq.Shape(), []int{2, 3, 4}) {
		t.Errorf("expected shape [2 3 4], got %v", rq.Shape())
	}
	if rq.Units() != "degK" {
		t.Errorf("expected units degK, got %q", rq.Units())
	}
	if !sliceEqual(rq.Values(), values) {
		t.Error("round trip must reproduce values")
	}
}

func TestRestoreLearnsNewDimLength(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat"}, "degK", []int{2}, []float64{1, 2}))
	inPr := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK"}}
	outPr := props.Properties{"flux": {Dims: []string{"interface"}, Units: "W m^-2"}}
	raw := map[string]*ndarray.Array{"flux": ndarray.Filled(1, 5)}

	restored, err := RestoreQuantities(raw, outPr, st, inPr, nil)
	if err != nil {
		t.Fatalf("RestoreQuantities: %v", err)
	}
	if !intsEqual(restored["flux"].Shape(), []int{5}) {
		t.Errorf("expected learned shape [5], got %v", restored["flux"].Shape())
	}
}

func TestRestoreShapeErrors(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat", "lon"}, "degK", []int{2, 3}, make([]float64, 6)))
	inPr := props.Properties{"temp": {Dims: []string{"*"}, Units: "degK"}}

	raw := map[string]*ndarray.Array{"temp": ndarray.New(7)}
	if _, err := RestoreQuantities(raw, inPr, st, inPr, nil); !errors.Is(err, ErrShapeRestore) {
		t.Errorf("span mismatch: expected ErrShapeRestore, got %v", err)
	}

	outPr := props.Properties{"out": {Dims: []string{"lat"}, Units: "m"}}
	raw = map[string]*ndarray.Array{"out": ndarray.New(99)}
	if _, err := RestoreQuantities(raw, outPr, st, inPr, nil); !errors.Is(err, ErrShapeRestore) {
		t.Errorf("length mismatch: expected ErrShapeRestore, got %v", err)
	}

	raw = map[string]*ndarray.Array{"out": ndarray.New(2, 2)}
	if _, err := RestoreQuantities(raw, outPr, st, inPr, nil); !errors.Is(err, ErrShapeRestore) {
		t.Errorf("rank mismatch: expected ErrShapeRestore, got %v", err)
	}
}

func TestRestoreOutputDimsUnknown(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat"}, "degK", []int{2}, []float64{1, 2}))
	inPr := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK"}}
	outPr := props.Properties{"mystery": {Units: "m"}}
	raw := map[string]*ndarray.Array{"mystery": ndarray.New(2)}
	if _, err := RestoreQuantities(raw, outPr, st, inPr, nil); !errors.Is(err, ErrOutputDimsUnknown) {
		t.Errorf("expected ErrOutputDimsUnknown, got %v", err)
	}
}

func TestRestoreAliasOrder(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat"}, "degK", []int{2}, []float64{1, 2}))
	inPr := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK", Alias: "T_in"}}
	outPr := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK", Alias: "T_out"}}

	for _, key := range []string{"T_out", "T_in", "temp"} {
		raw := map[string]*ndarray.Array{key: ndarray.Filled(3, 2)}
		restored, err := RestoreQuantities(raw, outPr, st, inPr, nil)
		if err != nil {
			t.Fatalf("key %q: %v", key, err)
		}
		if _, ok := restored["temp"]; !ok {
			t.Errorf("key %q: expected quantity under its declared name", key)
		}
	}
}

func TestRestoreIgnoreOptions(t *testing.T) {
	st := state.New(time.Time{})
	st.Set("temp", quantity(t, []string{"lat"}, "degK", []int{2}, []float64{1, 2}))
	inPr := props.Properties{"temp": {Dims: []string{"lat"}, Units: "degK"}}
	outPr := props.Properties{
		"temp":  {Dims: []string{"lat"}, Units: "degK"},
		"later": {Dims: []string{"lat"}, Units: "degK s^-1"},
	}
	raw := map[string]*ndarray.Array{"temp": ndarray.Filled(1, 2)}

	if _, err := RestoreQuantities(raw, outPr, st, inPr, nil); err == nil {
		t.Error("expected an error for a missing raw array")
	}
	restored, err := RestoreQuantities(raw, outPr, st, inPr, &RestoreOptions{IgnoreNames: []string{"later"}})
	if err != nil {
		t.Fatalf("IgnoreNames: %v", err)
	}
	if _, ok := restored["later"]; ok {
		t.Error("ignored name must not be restored")
	}
	restored, err = RestoreQuantities(raw, outPr, st, inPr, &RestoreOptions{IgnoreMissing: true})
	if err != nil {
		t.Fatalf("IgnoreMissing: %v", err)
	}
	if len(restored) != 1 {
		t.Errorf("expected 1 restored quantity, got %d", len(restored))
	}
}
