package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DType is the element type of a DataArray's values.
type DType string

const (
	DTypeFloat64 DType = "float64"
	DTypeInt64   DType = "int64"
	DTypeBool    DType = "bool"
)

// Spec is the immutable description of one named data variable: its
// dimensions, the coordinate labels for each dimension, its unit, and its
// element type. Two Specs are structurally equal iff every field other
// than the extensive flag matches exactly, including dimension and
// coordinate order.
type Spec struct {
	name      string
	dims      []string
	coords    map[string][]string
	unit      string
	dtype     DType
	extensive bool
}

// NewSpec constructs a Spec. dims gives the ordered dimension names; coords
// must have exactly one entry per dim. extensive marks the variable as
// summed (rather than averaged) under region/interval aggregation.
func NewSpec(name string, dims []string, coords map[string][]string, unit string, dtype DType, extensive bool) (Spec, error) {
	for _, d := range dims {
		if _, ok := coords[d]; !ok {
			return Spec{}, NewDomainError(ErrCodeInvalidInput,
				fmt.Sprintf("spec %q: dim %q has no coordinate list", name, d), nil)
		}
	}
	dimsCopy := append([]string(nil), dims...)
	coordsCopy := make(map[string][]string, len(coords))
	for k, v := range coords {
		coordsCopy[k] = append([]string(nil), v...)
	}
	return Spec{
		name:      name,
		dims:      dimsCopy,
		coords:    coordsCopy,
		unit:      unit,
		dtype:     dtype,
		extensive: extensive,
	}, nil
}

func (s Spec) Name() string             { return s.name }
func (s Spec) Dims() []string           { return append([]string(nil), s.dims...) }
func (s Spec) Coords(dim string) []string {
	return append([]string(nil), s.coords[dim]...)
}
func (s Spec) Unit() string  { return s.unit }
func (s Spec) DType() DType  { return s.dtype }
func (s Spec) Extensive() bool { return s.extensive }

// Shape returns the expected DataArray shape for this Spec: the length of
// the coordinate list for each dim, in dim order.
func (s Spec) Shape() []int {
	shape := make([]int, len(s.dims))
	for i, d := range s.dims {
		shape[i] = len(s.coords[d])
	}
	return shape
}

// Equal reports structural equality: same name, dims (order-sensitive),
// coords, unit, and dtype.
func (s Spec) Equal(other Spec) bool {
	if s.name != other.name || s.unit != other.unit || s.dtype != other.dtype {
		return false
	}
	if len(s.dims) != len(other.dims) {
		return false
	}
	for i := range s.dims {
		if s.dims[i] != other.dims[i] {
			return false
		}
	}
	for d, labels := range s.coords {
		otherLabels, ok := other.coords[d]
		if !ok || len(labels) != len(otherLabels) {
			return false
		}
		for i := range labels {
			if labels[i] != otherLabels[i] {
				return false
			}
		}
	}
	return true
}

// sameDimSet reports whether the two Specs name the same set of dims,
// irrespective of order.
func (s Spec) sameDimSet(other Spec) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	a := append([]string(nil), s.dims...)
	b := append([]string(nil), other.dims...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PrettyPrint renders a human-readable one-liner, e.g.
// "power[region=4,interval=1] GWh (float64)".
func (s Spec) PrettyPrint() string {
	var b strings.Builder
	b.WriteString(s.name)
	b.WriteByte('[')
	for i, d := range s.dims {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%d", d, len(s.coords[d]))
	}
	b.WriteByte(']')
	fmt.Fprintf(&b, " %s (%s)", s.unit, s.dtype)
	return b.String()
}
