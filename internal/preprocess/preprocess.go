// Package preprocess smooths and standardizes each region's per-variable
// series so distances compare shape rather than scale.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

// ErrConstantSeries indicates a smoothed series with zero variance, which
// cannot be standardized and would make every downstream distance equal.
var ErrConstantSeries = errors.New("constant series after smoothing")

// Transform applies LOWESS smoothing followed by z-scoring to every
// (region, variable) series, in that order: standardization normalizes the
// smoothed values, not the raw ones.
func Transform(p *domain.Panel, span float64) (*domain.Panel, error) {
	if span <= 0 || span > 1 {
		return nil, fmt.Errorf("span %g out of range (0, 1]", span)
	}

	days := p.NumDays()
	xs := make([]float64, days)
	for i := range xs {
		xs[i] = float64(i)
	}

	out := make(map[domain.Variable]*mat.Dense, len(p.Series))
	for _, v := range domain.Variables() {
		m := mat.NewDense(p.NumRegions(), days, nil)
		for r := 0; r < p.NumRegions(); r++ {
			smoothed, err := Lowess(xs, p.RegionSeries(v, r), span)
			if err != nil {
				return nil, fmt.Errorf("smooth region %q variable %q: %w", p.Regions[r], v, err)
			}
			if err := zscore(smoothed); err != nil {
				return nil, fmt.Errorf("standardize region %q variable %q: %w", p.Regions[r], v, err)
			}
			m.SetRow(r, smoothed)
		}
		out[v] = m
	}

	return &domain.Panel{Regions: p.Regions, Dates: p.Dates, Series: out}, nil
}

// Lowess runs locally weighted scatterplot smoothing over (xs, ys): at every
// point it fits a tricube-weighted linear regression on the span-sized
// neighborhood and evaluates the fit there. xs must be sorted ascending.
func Lowess(xs, ys []float64, span float64) ([]float64, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, fmt.Errorf("length mismatch: %d x values, %d y values", n, len(ys))
	}
	if n == 0 {
		return nil, errors.New("empty series")
	}

	q := int(math.Ceil(span * float64(n)))
	if q < 2 {
		q = 2
	}
	if q > n {
		q = n
	}

	out := make([]float64, n)
	weights := make([]float64, q)
	lo := 0
	for i := 0; i < n; i++ {
		lo = slideWindow(xs, i, lo, q)
		hi := lo + q // exclusive

		dmax := math.Max(xs[i]-xs[lo], xs[hi-1]-xs[i])
		if dmax == 0 {
			out[i] = stat.Mean(ys[lo:hi], nil)
			continue
		}
		for j := lo; j < hi; j++ {
			weights[j-lo] = tricube(math.Abs(xs[j]-xs[i]) / dmax)
		}

		alpha, beta := stat.LinearRegression(xs[lo:hi], ys[lo:hi], weights, false)
		fitted := alpha + beta*xs[i]
		if math.IsNaN(fitted) || math.IsInf(fitted, 0) {
			// Degenerate local fit (weights collapse onto one x); fall back
			// to the weighted mean.
			fitted = stat.Mean(ys[lo:hi], weights)
		}
		out[i] = fitted
	}
	return out, nil
}

// slideWindow advances the q-wide neighborhood so it contains the q nearest
// x values to xs[i]. The window only ever moves right as i grows.
func slideWindow(xs []float64, i, lo, q int) int {
	n := len(xs)
	for lo+q < n && xs[i]-xs[lo] > xs[lo+q]-xs[i] {
		lo++
	}
	return lo
}

// tricube is the LOWESS kernel (1 - u^3)^3 on [0, 1).
func tricube(u float64) float64 {
	if u >= 1 {
		return 0
	}
	c := 1 - u*u*u
	return c * c * c
}

// zscore standardizes in place to mean 0 and standard deviation 1.
func zscore(series []float64) error {
	mean, std := stat.MeanStdDev(series, nil)
	if std == 0 || math.IsNaN(std) {
		return ErrConstantSeries
	}
	for i, v := range series {
		series[i] = (v - mean) / std
	}
	return nil
}
