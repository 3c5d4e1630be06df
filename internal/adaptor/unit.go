package adaptor

import (
	"fmt"

	"github.com/smif-sim/smif/internal/domain"
)

type unitPair struct {
	source string
	sink   string
}

// linearConversion is a scale-and-offset transform: sink = value*Scale +
// Offset. Most engineering unit pairs (GWh<->MWh, celsius<->kelvin) are
// expressible this way.
type linearConversion struct {
	Scale  float64
	Offset float64
}

// UnitTable holds the registered linear conversions between unit pairs.
type UnitTable map[unitPair]linearConversion

func NewUnitTable() UnitTable {
	return make(UnitTable)
}

// Add registers a linear conversion from sourceUnit to sinkUnit, and its
// inverse, so the table is usable in both directions.
func (t UnitTable) Add(sourceUnit, sinkUnit string, scale, offset float64) {
	t[unitPair{sourceUnit, sinkUnit}] = linearConversion{Scale: scale, Offset: offset}
	if scale != 0 {
		t[unitPair{sinkUnit, sourceUnit}] = linearConversion{Scale: 1 / scale, Offset: -offset / scale}
	}
}

// UnitAdaptor rescales DataArray values between units using a registered
// linear (scale, offset) conversion. Shape and all non-unit Spec fields
// are unchanged by this stage.
type UnitAdaptor struct {
	table UnitTable
}

func (a *UnitAdaptor) Convert(source domain.DataArray, sink domain.Spec) (domain.DataArray, error) {
	srcSpec := source.Spec()
	if srcSpec.Unit() == sink.Unit() {
		return domain.NewDataArray(sink, source.Values())
	}
	conv, ok := a.table[unitPair{srcSpec.Unit(), sink.Unit()}]
	if !ok {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
			fmt.Sprintf("no unit conversion registered from %q to %q", srcSpec.Unit(), sink.Unit()), nil)
	}
	values := source.Values()
	for i, v := range values {
		values[i] = v*conv.Scale + conv.Offset
	}
	return domain.NewDataArray(sink, values)
}
