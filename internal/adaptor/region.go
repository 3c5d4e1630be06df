package adaptor

import (
	"fmt"
	"math"

	"github.com/smif-sim/smif/internal/domain"
)

// RegionTable holds the area-weighted overlap between every pair of
// source/sink region sets this process knows how to adapt between. Weight
// is the fraction of a source region's area that falls inside a sink
// region: for a given source region, the weights across all sink regions
// it overlaps should sum to (approximately) 1.
type RegionTable map[regionSetPair]map[string]map[string]float64

type regionSetPair struct {
	source string
	sink   string
}

// NewRegionTable builds an empty table; call Add for each source/sink
// region-set pair the pipeline needs to support.
func NewRegionTable() RegionTable {
	return make(RegionTable)
}

// Add registers the overlap weights between a named source region set and
// a named sink region set. weights[srcRegion][sinkRegion] is the fraction
// of srcRegion's area inside sinkRegion. The set names are not used for
// lookup: the entry is keyed by the source and sink region labels that
// weights mentions, the same coordinate-content key resolve derives from
// a Spec's coordinates.
func (t RegionTable) Add(sourceSet, sinkSet string, weights map[string]map[string]float64) {
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
	t[regionSetPair{regionSetKey(sources), regionSetKey(sinks)}] = weights
}

// minCoverage is the total overlap weight, summed over every source
// region, that each sink region must receive before a conversion is
// allowed to proceed. Below this, the sink region is only partly covered
// by source data, so it is reported as a ConversionError instead.
const minCoverage = 1 - 1e-6

func (t RegionTable) convertible(sourceCoords, sinkCoords []string) bool {
	_, err := t.resolve(sourceCoords, sinkCoords)
	return err == nil
}

// regionSetKey derives the lookup key for a coordinate list: region sets
// are identified by their sorted coordinate content, so two Specs sharing
// the same region labels resolve to the same set regardless of order.
func regionSetKey(coords []string) string {
	sorted := append([]string(nil), coords...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	key := ""
	for _, c := range sorted {
		key += c + "|"
	}
	return key
}

func (t RegionTable) resolve(sourceCoords, sinkCoords []string) (map[string]map[string]float64, error) {
	pair := regionSetPair{regionSetKey(sourceCoords), regionSetKey(sinkCoords)}
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
	return nil, fmt.Errorf("no region overlap table registered for this pair of region sets")
}

// RegionAdaptor converts DataArray values between named region sets via
// area-weighted aggregation: extensive variables (totals, e.g. energy
// demand) sum weighted contributions; intensive variables (rates,
// e.g. price) take the weighted average.
type RegionAdaptor struct {
	table RegionTable
}

func (a *RegionAdaptor) Convert(source domain.DataArray, sink domain.Spec) (domain.DataArray, error) {
	srcSpec := source.Spec()
	dims := srcSpec.Dims()
	regionPos := indexOf(dims, "region")
	if regionPos < 0 {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
			fmt.Sprintf("region conversion for %q: spec has no region dimension", srcSpec.Name()), nil)
	}
	srcCoords := srcSpec.Coords("region")
	sinkCoords := sink.Coords("region")
	weights, err := a.table.resolve(srcCoords, sinkCoords)
	if err != nil {
		return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
			fmt.Sprintf("region conversion for %q: %v", srcSpec.Name(), err), err)
	}

	sinkTotals := make(map[string]float64, len(sinkCoords))
	for _, w := range weights {
		for sinkRegion, v := range w {
			sinkTotals[sinkRegion] += v
		}
	}
	for _, sinkRegion := range sinkCoords {
		if sinkTotals[sinkRegion] < minCoverage {
			return domain.DataArray{}, domain.NewDomainError(domain.ErrCodeConversion,
				fmt.Sprintf("region conversion for %q: sink region %q only %.6f covered by source regions, need >= %.6f",
					srcSpec.Name(), sinkRegion, sinkTotals[sinkRegion], minCoverage), nil)
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
		srcRegion := srcCoords[idx[regionPos]]
		for sinkRegion, w := range weights[srcRegion] {
			si := indexOf(sinkCoords, sinkRegion)
			if si < 0 {
				continue
			}
			sinkIdx := append([]int(nil), idx...)
			sinkIdx[regionPos] = si
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
	out, err := domain.NewDataArray(sink, outValues)
	if err != nil {
		return domain.DataArray{}, err
	}
	return out, nil
}
