// Package stats holds the small numeric helpers shared by risk scoring and
// forecasting. All functions are pure and treat empty input as zero.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev returns the sample standard deviation of values. Fewer than two
// values yield 0.
func StdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Quantile returns the q-quantile of values, interpolating linearly between
// order statistics at position q*(n-1). values need not be sorted; the input
// slice is not modified.
//
// gonum's stat.Quantile is not used: its LinearInterp interpolates the
// empirical CDF at q*n, which places the quartiles of small samples
// differently and moves the Tukey fences.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	idx := int(math.Floor(pos))
	frac := pos - float64(idx)
	if idx+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[idx] + frac*(sorted[idx+1]-sorted[idx])
}

// Fit is an ordinary least squares line y = Intercept + Slope*x over
// x = 0..n-1.
type Fit struct {
	Slope      float64
	Intercept  float64
	ResidualSE float64 // residual standard error, n-2 degrees of freedom
	RSquared   float64
}

// At evaluates the fitted line at x.
func (f Fit) At(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// LinearFit fits a least-squares line to ys indexed 0..n-1. With fewer than
// two points the line is flat through the single value.
func LinearFit(ys []float64) Fit {
	switch len(ys) {
	case 0:
		return Fit{}
	case 1:
		return Fit{Intercept: ys[0]}
	}

	xs := make([]float64, len(ys))
	floats.Span(xs, 0, float64(len(ys)-1))
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	fit := Fit{Slope: beta, Intercept: alpha}

	if len(ys) > 2 {
		var ssRes float64
		for i, y := range ys {
			r := y - fit.At(xs[i])
			ssRes += r * r
		}
		fit.ResidualSE = math.Sqrt(ssRes / float64(len(ys)-2))
	}
	// R² is undefined for a constant series.
	if stat.Variance(ys, nil) > 0 {
		fit.RSquared = stat.RSquared(xs, ys, nil, alpha, beta)
	}
	return fit
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
