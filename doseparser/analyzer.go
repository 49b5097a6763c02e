package doseparser

import (
	"sort"

	"github.com/tripsit/erowid-doses/doseparser/entities"
)

// BandCut names one intensity band and the percentile of its upper
// boundary. The table is deliberately data: the cut points were chosen by
// eyeballing real distributions and are expected to be retuned.
type BandCut struct {
	Label string
	Upper float64
}

// BandCuts partitions a group's distribution into the five standard bands.
// The last band is unbounded above regardless of its table value.
var BandCuts = []BandCut{
	{Label: "Threshold", Upper: 0.10},
	{Label: "Light", Upper: 0.35},
	{Label: "Common", Upper: 0.65},
	{Label: "Strong", Upper: 0.90},
	{Label: "Heavy", Upper: 1.00},
}

const (
	// MinSamplesForBands is the smallest group that gets bands at all.
	// Smaller groups still report raw stats so sparse data stays visible.
	MinSamplesForBands = 3

	// OutlierMedianMultiple excludes values beyond this multiple of the
	// group median from boundary computation. One mistyped "5000mg"
	// should not stretch every band.
	OutlierMedianMultiple = 3.0
)

// AnalyzeGroup turns one (substance, route) group of observations into its
// banded result. Mixed units inside a group are resolved by keeping only
// the dominant unit's observations.
func AnalyzeGroup(observations []entities.DoseObservation) entities.RouteDoses {
	unit := dominantUnit(observations)

	amounts := make([]float64, 0, len(observations))
	for _, obs := range observations {
		if obs.Unit == unit {
			amounts = append(amounts, obs.Amount)
		}
	}
	sort.Float64s(amounts)

	result := entities.RouteDoses{Unit: unit}
	if len(amounts) == 0 {
		return result
	}

	median := medianOf(amounts)
	result.Stats = entities.RouteStats{
		Count:  len(amounts),
		Min:    amounts[0],
		Max:    amounts[len(amounts)-1],
		Median: median,
	}

	// amounts is sorted, so outliers are a suffix.
	cutoff := sort.SearchFloat64s(amounts, OutlierMedianMultiple*median+1e-9)
	result.Stats.Outliers = len(amounts) - cutoff

	if len(amounts) >= MinSamplesForBands {
		result.Bands = computeBands(amounts[:cutoff])
	}
	return result
}

// dominantUnit picks the most frequent canonical unit in the group, ties
// broken lexicographically so runs stay deterministic.
func dominantUnit(observations []entities.DoseObservation) string {
	counts := make(map[string]int)
	for _, obs := range observations {
		counts[obs.Unit]++
	}

	var best string
	bestCount := -1
	for unit, count := range counts {
		if count > bestCount || (count == bestCount && unit < best) {
			best = unit
			bestCount = count
		}
	}
	return best
}

// computeBands builds the contiguous band partition from the outlier-free
// sorted amounts. Bands are half-open [lower, upper); the first lower bound
// is zero, the last band has no upper bound, and adjacent bands share their
// boundary so there is never a gap or an overlap.
func computeBands(sorted []float64) []entities.IntensityBand {
	if len(sorted) == 0 {
		return nil
	}

	bands := make([]entities.IntensityBand, 0, len(BandCuts))
	lower := 0.0
	for i, cut := range BandCuts {
		band := entities.IntensityBand{Label: cut.Label, Lower: lower}
		if i < len(BandCuts)-1 {
			upper := percentile(sorted, cut.Upper)
			band.Upper = &upper
			lower = upper
		}
		bands = append(bands, band)
	}
	return bands
}

// percentile is nearest-rank on the sorted slice.
func percentile(sorted []float64, fraction float64) float64 {
	idx := int(float64(len(sorted)) * fraction)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
