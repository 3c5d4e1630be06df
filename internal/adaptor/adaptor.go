// Package adaptor converts a DataArray produced against one Spec into a
// DataArray consumable against another, differently-shaped Spec. Three
// kinds of conversion exist — region, interval (temporal), and unit — and
// a Pipeline always applies them in that fixed order: region first, then
// interval, then unit. Running region before interval keeps spatial
// aggregation (area-weighted) independent of whatever temporal resampling
// follows it; running unit last means every intermediate step stays in the
// source unit and only the final values are rescaled.
package adaptor

import (
	"fmt"

	"github.com/smif-sim/smif/internal/domain"
)

// Adaptor converts a DataArray from a source Spec's coordinate system to a
// sink Spec's, for one dimension (or the identity conversion across all
// dimensions at once).
type Adaptor interface {
	// Convert produces the sink-shaped array from the source array. Source
	// must already be bound to a Spec convertible to sink per the rules
	// the Adaptor implements.
	Convert(source domain.DataArray, sink domain.Spec) (domain.DataArray, error)
}

// Pipeline is the fixed region -> interval -> unit composition of
// adaptors used everywhere a Spec mismatch must be resolved. It also
// implements domain.ConversionRegistry so domain.Spec.IsConvertibleTo can
// be evaluated against it without an import cycle.
type Pipeline struct {
	Region   *RegionAdaptor
	Interval *IntervalAdaptor
	Unit     *UnitAdaptor
}

// NewPipeline builds a Pipeline from region and interval aggregation
// tables and a unit conversion table.
func NewPipeline(regions RegionTable, intervals IntervalTable, units UnitTable) *Pipeline {
	return &Pipeline{
		Region:   &RegionAdaptor{table: regions},
		Interval: &IntervalAdaptor{table: intervals},
		Unit:     &UnitAdaptor{table: units},
	}
}

// Convert runs the full region -> interval -> unit pipeline, skipping any
// stage whose dimensions/unit already match between source and sink.
func (p *Pipeline) Convert(source domain.DataArray, sink domain.Spec) (domain.DataArray, error) {
	cur := source

	if hasDim(cur.Spec(), "region") && hasDim(sink, "region") && !sameCoords(cur.Spec(), sink, "region") {
		out, err := p.Region.Convert(cur, stageSpec(cur.Spec(), sink, "region"))
		if err != nil {
			return domain.DataArray{}, err
		}
		cur = out
	}
	if hasDim(cur.Spec(), "interval") && hasDim(sink, "interval") && !sameCoords(cur.Spec(), sink, "interval") {
		out, err := p.Interval.Convert(cur, stageSpec(cur.Spec(), sink, "interval"))
		if err != nil {
			return domain.DataArray{}, err
		}
		cur = out
	}
	if cur.Spec().Unit() != sink.Unit() {
		out, err := p.Unit.Convert(cur, sink)
		if err != nil {
			return domain.DataArray{}, err
		}
		cur = out
	}
	return cur, nil
}

// DimConvertible implements domain.ConversionRegistry.
func (p *Pipeline) DimConvertible(dim string, sourceCoords, sinkCoords []string) bool {
	switch dim {
	case "region":
		return p.Region.table.convertible(sourceCoords, sinkCoords)
	case "interval":
		return p.Interval.table.convertible(sourceCoords, sinkCoords)
	default:
		return sameStrings(sourceCoords, sinkCoords)
	}
}

// UnitConvertible implements domain.ConversionRegistry.
func (p *Pipeline) UnitConvertible(sourceUnit, sinkUnit string) bool {
	if sourceUnit == sinkUnit {
		return true
	}
	_, ok := p.Unit.table[unitPair{sourceUnit, sinkUnit}]
	return ok
}

func hasDim(s domain.Spec, dim string) bool {
	for _, d := range s.Dims() {
		if d == dim {
			return true
		}
	}
	return false
}

func sameCoords(a, b domain.Spec, dim string) bool {
	return sameStrings(a.Coords(dim), b.Coords(dim))
}

func sameStrings(a, b []string) bool {
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

// stageSpec builds an intermediate Spec that has swapped in sink's
// coordinates for dim only, leaving every other dim and the unit as in
// source — the shape a single pipeline stage should produce.
func stageSpec(source, sink domain.Spec, dim string) domain.Spec {
	dims := source.Dims()
	coords := make(map[string][]string, len(dims))
	for _, d := range dims {
		if d == dim {
			coords[d] = sink.Coords(dim)
		} else {
			coords[d] = source.Coords(d)
		}
	}
	s, err := domain.NewSpec(source.Name(), dims, coords, source.Unit(), source.DType(), source.Extensive())
	if err != nil {
		// dims/coords are derived from two already-valid Specs, so this
		// cannot fail; a panic here would indicate a bug in this function.
		panic(fmt.Sprintf("adaptor: building stage spec: %v", err))
	}
	return s
}
