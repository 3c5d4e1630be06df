package domain

// ConversionRegistry answers whether a concrete adaptor chain exists to
// take values from a source coordinate list to a sink coordinate list on one
// dimension, and whether a unit is convertible to another. Implemented by
// internal/adaptor.Pipeline; declared here so Spec.IsConvertibleTo can be
// evaluated without this package importing the adaptor package.
type ConversionRegistry interface {
	DimConvertible(dim string, sourceCoords, sinkCoords []string) bool
	UnitConvertible(sourceUnit, sinkUnit string) bool
}

// IsConvertibleTo reports whether values described by s can be adapted to
// match other: the dim name sets must match (order-independent) and, for
// every dim, reg must know how to carry source coords to sink coords; units
// must be equal or unit-convertible per reg.
func (s Spec) IsConvertibleTo(other Spec, reg ConversionRegistry) bool {
	if !s.sameDimSet(other) {
		return false
	}
	for _, d := range other.dims {
		srcCoords, ok := s.coords[d]
		if !ok {
			return false
		}
		sinkCoords := other.coords[d]
		if !reg.DimConvertible(d, srcCoords, sinkCoords) {
			return false
		}
	}
	if s.unit == other.unit {
		return true
	}
	return reg.UnitConvertible(s.unit, other.unit)
}
