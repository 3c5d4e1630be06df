package domain

import (
	"fmt"
	"math"
)

// DataArray is a labelled n-dimensional numerical array bound to a Spec.
// It is the single currency moved between models: every producer output and
// consumer input is a DataArray. Values are stored flattened in row-major
// order over Spec.Shape(); mutation (SetValues) replaces the backing slice
// wholesale rather than patching individual cells, since arrays are produced
// fresh by each model invocation rather than patched in place.
type DataArray struct {
	spec   Spec
	values []float64
}

// NewDataArray validates that values' length equals the product of the
// Spec's shape, then binds them.
func NewDataArray(spec Spec, values []float64) (DataArray, error) {
	want := 1
	for _, n := range spec.Shape() {
		want *= n
	}
	if len(values) != want {
		return DataArray{}, NewDomainError(ErrCodeInvalidInput,
			fmt.Sprintf("data array for spec %q: expected %d values, got %d", spec.name, want, len(values)), nil)
	}
	return DataArray{spec: spec, values: append([]float64(nil), values...)}, nil
}

// ZeroDataArray builds a DataArray of the right shape filled with zeros.
func ZeroDataArray(spec Spec) DataArray {
	n := 1
	for _, d := range spec.Shape() {
		n *= d
	}
	return DataArray{spec: spec, values: make([]float64, n)}
}

func (a DataArray) Spec() Spec { return a.spec }

// Values returns a defensive copy of the flattened, row-major values.
func (a DataArray) Values() []float64 {
	return append([]float64(nil), a.values...)
}

// SetValues replaces the backing values wholesale; len(values) must match
// the existing shape.
func (a *DataArray) SetValues(values []float64) error {
	if len(values) != len(a.values) {
		return NewDomainError(ErrCodeInvalidInput,
			fmt.Sprintf("data array for spec %q: shape mismatch on replace, want %d got %d", a.spec.name, len(a.values), len(values)), nil)
	}
	a.values = append([]float64(nil), values...)
	return nil
}

// index computes the flattened offset for a coordinate-index tuple given in
// dim order.
func (a DataArray) index(idx []int) (int, error) {
	shape := a.spec.Shape()
	if len(idx) != len(shape) {
		return 0, NewDomainError(ErrCodeInvalidInput, "index arity mismatch", nil)
	}
	offset := 0
	for i, n := range shape {
		if idx[i] < 0 || idx[i] >= n {
			return 0, NewDomainError(ErrCodeInvalidInput,
				fmt.Sprintf("index %d out of range [0,%d) on dim %q", idx[i], n, a.spec.dims[i]), nil)
		}
		offset = offset*n + idx[i]
	}
	return offset, nil
}

// At returns the value at the given coordinate-index tuple.
func (a DataArray) At(idx ...int) (float64, error) {
	off, err := a.index(idx)
	if err != nil {
		return 0, err
	}
	return a.values[off], nil
}

// Sum returns the sum of all non-NaN values. If every value is NaN, the
// result is NaN rather than zero, so a fully-missing array stays visibly
// missing after aggregation.
func (a DataArray) Sum() float64 {
	sum := 0.0
	any := false
	for _, v := range a.values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		any = true
	}
	if !any {
		return math.NaN()
	}
	return sum
}
