package adaptor

import (
	"fmt"
	"math"

	"github.com/smif-sim/smif/internal/domain"
)

// IntervalTable is the temporal analogue of RegionTable: it holds the
// fraction of a source interval's duration that overlaps each sink
// interval, keyed by the source/sink interval labels each entry covers.
type IntervalTable map[intervalSetPair]map[string]map[string]float64

type intervalSetPair struct {
	source string
	sink   string
}

func NewIntervalTable() IntervalTable {
	return make(IntervalTable)
}

// Add registers the overlap weights between a named source interval set
// and a named sink interval set. weights[srcInterval][sinkInterval] is the
// fraction of srcInterval's duration inside sinkInterval. The set names
// are not used for lookup: the entry is keyed by the source and sink
// interval labels that weights mentions, the same coordinate-content key
// resolve derives from a Spec's coordinates.
func (t IntervalTable) Add(sourceSet, sinkSet string, weights map[string]map[string]float64) {
	var sources, sinks []string
	seen := make(map[string]bool)
	for src, w := range weights {
		sources = append(sources, src)
		for sink := range w {
			if !seen[sink] {
				seen[sink] = true
				sinks = append(sinks, sink)
			}
		}
	}
	t[intervalSetPair{regionSetKey(sources), regionSetKey(sinks)}] = weights
}

func (t IntervalTable) convertible(sourceCoords, sinkCoords []string) bool {
	_, err := t.resolve(sourceCoords, sinkCoords)
	return err == nil
}

func (t IntervalTable) resolve(sourceCoords, sinkCoords []string) (map[string]map[string]float64, error) {
	pair := intervalSetPair{regionSetKey(sourceCoords), regionSetKey(sinkCoords)}
	if weights, ok := t[pair]; ok {
		return weights, nil
	}
	if regionSetKey(sourceCoords) == regionSetKey(sinkCoords) {
		ident := make(map[string]map[string]float64, len(sourceCoords))
		for _, c := range sourceCoords {
			ident[c] = map[string]float64{c: 1.0}
		}
		return ident, nil
	}
	return nil, fmt.Errorf("no interval overlap table registered for this pair of interval sets")
}

// IntervalAdaptor converts DataArray values between named temporal
// interval sets by duration-weighted aggregation: extensive variables
// (energy delivered within the interval) sum weighted contributions;
// intensive variables (an instantaneous rate) take the weighted average.
type IntervalAdaptor struct {
	table IntervalTable
}

func (a *IntervalAdaptor) Convert(source domain.DataArray, sink domain.Spec) (domain.DataArray, error) {
	srcSpec := source.Spec()
	dims := srcSpec.Dims()
	pos := indexOf(dims, "interval")
	if pos < 0 {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
			fmt.Sprintf("interval conversion for %q: spec has no interval dimension", srcSpec.Name()), nil)
	}
	srcCoords := srcSpec.Coords("interval")
	sinkCoords := sink.Coords("interval")
	weights, err := a.table.resolve(srcCoords, sinkCoords)
	if err != nil {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
			fmt.Sprintf("interval conversion for %q: %v", srcSpec.Name(), err), err)
	}

	sinkTotals := make(map[string]float64, len(sinkCoords))
	for _, w := range weights {
		for sinkInterval, v := range w {
			sinkTotals[sinkInterval] += v
		}
	}
	for _, sinkInterval := range sinkCoords {
		if sinkTotals[sinkInterval] < minCoverage {
			return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
				fmt.Sprintf("interval conversion for %q: sink interval %q only %.6f covered by source intervals, need >= %.6f",
					srcSpec.Name(), sinkInterval, sinkTotals[sinkInterval], minCoverage), nil)
		}
	}

	srcShape := srcSpec.Shape()
	sinkShape := sink.Shape()
	outValues := make([]float64, product(sinkShape))
	outWeights := make([]float64, product(sinkShape))

	idx := make([]int, len(dims))
	for flat := 0; flat < product(srcShape); flat++ {
		unflattenInto(flat, srcShape, idx)
		v, err := source.At(idx...)
		if err != nil {
			return domain.DataArray{}, err
		}
		if math.IsNaN(v) {
			continue
		}
		srcInterval := srcCoords[idx[pos]]
		for sinkInterval, w := range weights[srcInterval] {
			si := indexOf(sinkCoords, sinkInterval)
			if si < 0 {
				continue
			}
			sinkIdx := append([]int(nil), idx...)
			sinkIdx[pos] = si
			off := flattenIndex(sinkShape, sinkIdx)
			outValues[off] += w * v
			outWeights[off] += w
		}
	}
	if !srcSpec.Extensive() {
		for i := range outValues {
			if outWeights[i] > 0 {
				outValues[i] /= outWeights[i]
			}
		}
	}
	return domain.NewDataArray(sink, outValues)
}
