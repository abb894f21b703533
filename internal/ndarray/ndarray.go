package ndarray

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeMismatch indicates an element count that does not match the requested shape.
	ErrSizeMismatch = errors.New("ndarray: element count does not match shape")
	// ErrShapeMismatch indicates two arrays whose shapes disagree for an elementwise operation.
	ErrShapeMismatch = errors.New("ndarray: shape mismatch")
	// ErrBadAxis indicates an axis index or permutation outside the array's rank.
	ErrBadAxis = errors.New("ndarray: bad axis")
)

// Array is a dense float64 array of arbitrary rank. Fresh arrays are
// row-major contiguous; Transpose returns a view sharing the backing
// slice, so mutating a view mutates its base.
type Array struct {
	data    []float64
	shape   []int
	strides []int
}

// New returns a zero-filled row-major array.
func New(shape ...int) *Array {
	return &Array{
		data:    make([]float64, sizeOf(shape)),
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
	}
}

// Filled returns an array with every element set to v.
func Filled(v float64, shape ...int) *Array {
	a := New(shape...)
	for i := range a.data {
		a.data[i] = v
	}
	return a
}

// Scalar returns a rank-0 array holding a single value.
func Scalar(v float64) *Array {
	return &Array{data: []float64{v}, shape: nil, strides: nil}
}

// FromSlice wraps data without copying. The array takes ownership of
// the slice; callers relying on pass-through semantics should not
// mutate it independently.
func FromSlice(data []float64, shape ...int) (*Array, error) {
	if len(data) != sizeOf(shape) {
		return nil, fmt.Errorf("%w: have %d elements, shape %v needs %d",
			ErrSizeMismatch, len(data), shape, sizeOf(shape))
	}
	return &Array{
		data:    data,
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
	}, nil
}

func sizeOf(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Rank returns the number of axes.
func (a *Array) Rank() int { return len(a.shape) }

// Size returns the total element count.
func (a *Array) Size() int { return sizeOf(a.shape) }

// Shape returns a copy of the axis lengths.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Data exposes the backing slice. For contiguous arrays its order is
// row-major; views share the slice of their base.
func (a *Array) Data() []float64 { return a.data }

// At returns the element at the given indices.
func (a *Array) At(ix ...int) float64 {
	return a.data[a.offset(ix)]
}

// Set assigns the element at the given indices.
func (a *Array) Set(v float64, ix ...int) {
	a.data[a.offset(ix)] = v
}

func (a *Array) offset(ix []int) int {
	if len(ix) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for rank %d", len(ix), len(a.shape)))
	}
	off := 0
	for i, x := range ix {
		if x < 0 || x >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range for axis %d (length %d)", x, i, a.shape[i]))
		}
		off += x * a.strides[i]
	}
	return off
}

// IsContiguous reports whether the array is laid out row-major with no
// gaps, i.e. Data() iterates elements in index order.
func (a *Array) IsContiguous() bool {
	want := rowMajorStrides(a.shape)
	for i := range want {
		if a.shape[i] > 1 && a.strides[i] != want[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent row-major copy.
func (a *Array) Clone() *Array {
	out := New(a.shape...)
	a.copyInto(out.data)
	return out
}

// Compact returns the array itself when contiguous, otherwise a
// row-major copy.
func (a *Array) Compact() *Array {
	if a.IsContiguous() {
		return a
	}
	return a.Clone()
}

func (a *Array) copyInto(dst []float64) {
	if a.IsContiguous() {
		copy(dst, a.data[:a.Size()])
		return
	}
	it := newIndexIter(a.shape)
	for i := 0; it.next(); i++ {
		dst[i] = a.data[a.offset(it.ix)]
	}
}

// Transpose returns a view with axes permuted. An empty perm reverses
// the axes.
func (a *Array) Transpose(perm ...int) (*Array, error) {
	if len(perm) == 0 {
		perm = make([]int, len(a.shape))
		for i := range perm {
			perm[i] = len(a.shape) - 1 - i
		}
	}
	if len(perm) != len(a.shape) {
		return nil, fmt.Errorf("%w: permutation %v for rank %d", ErrBadAxis, perm, len(a.shape))
	}
	seen := make([]bool, len(perm))
	shape := make([]int, len(perm))
	strides := make([]int, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(a.shape) || seen[p] {
			return nil, fmt.Errorf("%w: permutation %v for rank %d", ErrBadAxis, perm, len(a.shape))
		}
		seen[p] = true
		shape[i] = a.shape[p]
		strides[i] = a.strides[p]
	}
	return &Array{data: a.data, shape: shape, strides: strides}, nil
}

// Reshape returns an array with the same elements and a new shape: a
// view when the receiver is contiguous, otherwise a row-major copy.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if sizeOf(shape) != a.Size() {
		return nil, fmt.Errorf("%w: cannot reshape %v (%d elements) to %v (%d elements)",
			ErrSizeMismatch, a.shape, a.Size(), shape, sizeOf(shape))
	}
	base := a.Compact()
	return &Array{
		data:    base.data,
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
	}, nil
}

// Broadcast materializes src into a new array of the given shape.
// axisMap[t] names the source axis feeding target axis t, or -1 for an
// axis absent from the source, along which values are replicated.
func Broadcast(src *Array, axisMap []int, shape []int) (*Array, error) {
	if len(axisMap) != len(shape) {
		return nil, fmt.Errorf("%w: axis map length %d for target rank %d", ErrBadAxis, len(axisMap), len(shape))
	}
	used := make([]bool, src.Rank())
	for t, s := range axisMap {
		if s == -1 {
			continue
		}
		if s < 0 || s >= src.Rank() || used[s] {
			return nil, fmt.Errorf("%w: axis map %v for source rank %d", ErrBadAxis, axisMap, src.Rank())
		}
		if src.shape[s] != shape[t] {
			return nil, fmt.Errorf("%w: source axis %d has length %d, target axis %d has length %d",
				ErrShapeMismatch, s, src.shape[s], t, shape[t])
		}
		used[s] = true
	}
	for s, ok := range used {
		if !ok {
			return nil, fmt.Errorf("%w: source axis %d unmapped", ErrBadAxis, s)
		}
	}
	out := New(shape...)
	srcIx := make([]int, src.Rank())
	it := newIndexIter(shape)
	for i := 0; it.next(); i++ {
		for t, s := range axisMap {
			if s != -1 {
				srcIx[s] = it.ix[t]
			}
		}
		out.data[i] = src.data[src.offset(srcIx)]
	}
	return out, nil
}

// Fill assigns v to every element.
func (a *Array) Fill(v float64) {
	if a.IsContiguous() {
		for i := range a.data[:a.Size()] {
			a.data[i] = v
		}
		return
	}
	it := newIndexIter(a.shape)
	for it.next() {
		a.data[a.offset(it.ix)] = v
	}
}

// Apply returns a new array with f applied elementwise.
func (a *Array) Apply(f func(float64) float64) *Array {
	out := a.Clone()
	for i := range out.data {
		out.data[i] = f(out.data[i])
	}
	return out
}

// EqualShape reports whether the two arrays have identical shapes.
func (a *Array) EqualShape(b *Array) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// Add returns the elementwise sum a+b.
func (a *Array) Add(b *Array) (*Array, error) {
	return a.zip(b, func(x, y float64) float64 { return x + y })
}

// Sub returns the elementwise difference a-b.
func (a *Array) Sub(b *Array) (*Array, error) {
	return a.zip(b, func(x, y float64) float64 { return x - y })
}

// Scale returns a new array with every element multiplied by f.
func (a *Array) Scale(f float64) *Array {
	return a.Apply(func(x float64) float64 { return x * f })
}

// AddScaled returns a + f*b.
func (a *Array) AddScaled(f float64, b *Array) (*Array, error) {
	return a.zip(b, func(x, y float64) float64 { return x + f*y })
}

func (a *Array) zip(b *Array, f func(x, y float64) float64) (*Array, error) {
	if !a.EqualShape(b) {
		return nil, fmt.Errorf("%w: %v and %v", ErrShapeMismatch, a.shape, b.shape)
	}
	out := New(a.shape...)
	if a.IsContiguous() && b.IsContiguous() {
		for i := range out.data {
			out.data[i] = f(a.data[i], b.data[i])
		}
		return out, nil
	}
	it := newIndexIter(a.shape)
	for i := 0; it.next(); i++ {
		out.data[i] = f(a.data[a.offset(it.ix)], b.data[b.offset(it.ix)])
	}
	return out, nil
}

// AllClose reports whether every element of a is within tol of the
// corresponding element of b.
func (a *Array) AllClose(b *Array, tol float64) bool {
	if !a.EqualShape(b) {
		return false
	}
	it := newIndexIter(a.shape)
	for it.next() {
		d := a.data[a.offset(it.ix)] - b.data[b.offset(it.ix)]
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}

// indexIter walks every index tuple of a shape in row-major order.
type indexIter struct {
	shape []int
	ix    []int
	done  bool
	first bool
}

func newIndexIter(shape []int) *indexIter {
	for _, s := range shape {
		if s == 0 {
			return &indexIter{done: true}
		}
	}
	return &indexIter{shape: shape, ix: make([]int, len(shape)), first: true}
}

func (it *indexIter) next() bool {
	if it.done {
		return false
	}
	if it.first {
		it.first = false
		return true
	}
	for i := len(it.ix) - 1; i >= 0; i-- {
		it.ix[i]++
		if it.ix[i] < it.shape[i] {
			return true
		}
		it.ix[i] = 0
	}
	it.done = true
	return false
}
