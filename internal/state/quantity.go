package state

import (
	"fmt"

	"github.com/san-kum/fieldsim/internal/ndarray"
	"github.com/san-kum/fieldsim/internal/units"
)

// Quantity is a labeled array: one dimension name per array axis and a
// unit string for the values. The backing array is shared, not copied,
// by the constructors.
type Quantity struct {
	dims  []string
	units string
	arr   *ndarray.Array
}

// NewQuantity builds a quantity over the given array. The number of
// dimension names must match the array rank, names must be unique, and
// the wildcard is not a real dimension.
func NewQuantity(dims []string, unitstr string, arr *ndarray.Array) (*Quantity, error) {
	if len(dims) != arr.Rank() {
		return nil, fmt.Errorf("%w: %d dims for rank-%d array", ErrDimsMismatch, len(dims), arr.Rank())
	}
	seen := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		if d == "*" {
			return nil, fmt.Errorf("%w: wildcard is not a state dimension", ErrDimsMismatch)
		}
		if _, ok := seen[d]; ok {
			return nil, fmt.Errorf("%w: duplicate dimension %q", ErrDimsMismatch, d)
		}
		seen[d] = struct{}{}
	}
	return &Quantity{dims: append([]string(nil), dims...), units: unitstr, arr: arr}, nil
}

// Scalar builds a dimensionless-shape (rank 0) quantity.
func Scalar(unitstr string, v float64) *Quantity {
	return &Quantity{units: unitstr, arr: ndarray.Scalar(v)}
}

// Full builds a quantity with every element set to v.
func Full(dims []string, unitstr string, shape []int, v float64) (*Quantity, error) {
	return NewQuantity(dims, unitstr, ndarray.Filled(v, shape...))
}

// FromValues builds a quantity wrapping the given row-major values.
// The slice is shared, not copied.
func FromValues(dims []string, unitstr string, shape []int, values []float64) (*Quantity, error) {
	arr, err := ndarray.FromSlice(values, shape...)
	if err != nil {
		return nil, err
	}
	return NewQuantity(dims, unitstr, arr)
}

// Dims returns a copy of the dimension names, one per axis.
func (q *Quantity) Dims() []string { return append([]string(nil), q.dims...) }

// Units returns the unit string.
func (q *Quantity) Units() string { return q.units }

// Array returns the backing array, shared with the quantity.
func (q *Quantity) Array() *ndarray.Array { return q.arr }

// Values returns the backing buffer of the quantity's array.
func (q *Quantity) Values() []float64 { return q.arr.Data() }

// Shape returns the array shape.
func (q *Quantity) Shape() []int { return q.arr.Shape() }

// Rank returns the number of axes.
func (q *Quantity) Rank() int { return q.arr.Rank() }

// HasDim reports whether name labels one of the axes.
func (q *Quantity) HasDim(name string) bool { return q.DimIndex(name) >= 0 }

// DimIndex returns the axis labeled name, or -1.
func (q *Quantity) DimIndex(name string) int {
	for i, d := range q.dims {
		if d == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy with a compact backing array.
func (q *Quantity) Clone() *Quantity {
	return &Quantity{
		dims:  append([]string(nil), q.dims...),
		units: q.units,
		arr:   q.arr.Clone(),
	}
}

// WithArray returns a quantity with the same labels over a different
// array, which must have the same rank.
func (q *Quantity) WithArray(arr *ndarray.Array) (*Quantity, error) {
	return NewQuantity(q.dims, q.units, arr)
}

// ToUnits returns a deep copy converted to the target units.
func (q *Quantity) ToUnits(target string) (*Quantity, error) {
	c, err := units.Factor(q.units, target)
	if err != nil {
		return nil, err
	}
	arr := q.arr.Clone()
	if c.Scale != 1 || c.Shift != 0 {
		arr = q.arr.Apply(c.Apply)
	}
	return &Quantity{
		dims:  append([]string(nil), q.dims...),
		units: target,
		arr:   arr,
	}, nil
}

// aligned returns a view of other's array with axes permuted into q's
// dimension order. The dimension sets must match.
func (q *Quantity) aligned(other *Quantity) (*ndarray.Array, error) {
	if len(other.dims) != len(q.dims) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrDimsMismatch, q.dims, other.dims)
	}
	perm := make([]int, len(q.dims))
	identity := true
	for i, d := range q.dims {
		j := other.DimIndex(d)
		if j < 0 {
			return nil, fmt.Errorf("%w: %v vs %v", ErrDimsMismatch, q.dims, other.dims)
		}
		perm[i] = j
		if j != i {
			identity = false
		}
	}
	if identity {
		return other.arr, nil
	}
	return other.arr.Transpose(perm...)
}

// Add returns q + other as a new quantity. The addend is converted to
// q's units and its axes are aligned to q's dimension order; the
// result carries q's labels.
func (q *Quantity) Add(other *Quantity) (*Quantity, error) {
	return q.AddScaled(other, 1)
}

// AddScaled returns q + f*other as a new quantity, converting and
// aligning the addend like Add.
func (q *Quantity) AddScaled(other *Quantity, f float64) (*Quantity, error) {
	conv, err := other.ToUnits(q.units)
	if err != nil {
		return nil, err
	}
	b, err := q.aligned(conv)
	if err != nil {
		return nil, err
	}
	sum, err := q.arr.AddScaled(f, b)
	if err != nil {
		return nil, err
	}
	return &Quantity{
		dims:  append([]string(nil), q.dims...),
		units: q.units,
		arr:   sum,
	}, nil
}

// Scaled returns the quantity with every value multiplied by f.
func (q *Quantity) Scaled(f float64) *Quantity {
	return &Quantity{
		dims:  append([]string(nil), q.dims...),
		units: q.units,
		arr:   q.arr.Scale(f),
	}
}

// WithUnits returns a quantity sharing this one's array under a
// different unit label. No values are converted.
func (q *Quantity) WithUnits(unitstr string) *Quantity {
	return &Quantity{
		dims:  append([]string(nil), q.dims...),
		units: unitstr,
		arr:   q.arr,
	}
}
