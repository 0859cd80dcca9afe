package montecarlo

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/cascadelab/internal/constants"
)

// Distribution summarizes ensemble outcomes.
type Distribution struct {
	Runs   int     `json:"runs"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
}

// Bin is one histogram bucket over reach fractions, covering [Lower, Upper).
// The last bin also includes its upper edge.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Summarize computes the distribution of outcomes. StdDev is the
// population standard deviation. No outcomes yields a zero Distribution.
func Summarize(outcomes []float64) Distribution {
	if len(outcomes) == 0 {
		return Distribution{}
	}

	sorted := append([]float64(nil), outcomes...)
	sort.Float64s(sorted)

	d := Distribution{
		Runs:   len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P10:    stat.Quantile(0.1, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		d.StdDev = stat.PopStdDev(sorted, nil)
	}
	return d
}

// Histogram buckets outcomes as fractions of nodeCount into equal-width
// bins spanning the observed range of fractions. bins <= 0 uses the
// default of 20. When every fraction is equal a single bin holds them all.
func Histogram(outcomes []float64, nodeCount, bins int) []Bin {
	if len(outcomes) == 0 {
		return []Bin{}
	}
	if bins <= 0 {
		bins = constants.DefaultHistogramBins
	}
	denom := float64(nodeCount)
	if denom < 1 {
		denom = 1
	}

	fractions := make([]float64, len(outcomes))
	for i, o := range outcomes {
		fractions[i] = o / denom
	}

	lo, hi := floats.Min(fractions), floats.Max(fractions)
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(fractions)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, f := range fractions {
		i := int(math.Floor((f - lo) / width))
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		out[i].Count++
	}
	return out
}
