package cho

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
func normalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
func normalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// clamp limits v to [lo, hi].
func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// clampUnit returns a copy of u with every coordinate limited to [0, 1].
// NaN coordinates become 0.5 so a broken local search step can not escape
// the unit box.
func clampUnit(u []float64) []float64 {
	out := make([]float64, len(u))
	for i, v := range u {
		if math.IsNaN(v) {
			out[i] = 0.5

			continue
		}

		out[i] = clamp(v, 0, 1)
	}

	return out
}

// cloneFloats returns an independent copy of s.
func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}

	out := make([]float64, len(s))
	copy(out, s)

	return out
}

// squaredDistance returns the squared Euclidean distance between a and b.
//
// Important notes:
// - Panics if input vectors have different lengths
func squaredDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range a {
		diff := a[i] - b[i]

		sum += diff * diff
	}

	return sum
}

// minDistance returns the smallest Euclidean distance between x and any
// point in points, or +Inf when points is empty.
func minDistance(x []float64, points [][]float64) float64 {
	best := math.Inf(1)

	for _, p := range points {
		if d := squaredDistance(x, p); d < best {
			best = d
		}
	}

	return math.Sqrt(best)
}

// meanStd returns the mean and the population standard deviation of y.
func meanStd(y []float64) (mean, std float64) {
	if len(y) == 0 {
		return 0, 0
	}

	for _, v := range y {
		mean += v
	}

	mean /= float64(len(y))

	var ss float64

	for _, v := range y {
		d := v - mean

		ss += d * d
	}

	return mean, math.Sqrt(ss / float64(len(y)))
}
