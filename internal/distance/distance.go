// Package distance builds the composite region-by-region distance matrix the
// clustering stage consumes. It is a pure function of the per-variable data
// matrices so the gap-statistic bootstrap can call it on resampled data and
// get exactly the same aggregation as the main pipeline.
package distance

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

// Composite computes, for each variable independently, the pairwise Euclidean
// distance between region time series (each region's full series treated as a
// point in time-dimensional space), then sums the per-variable matrices
// elementwise with equal weight. Equal weighting presumes standardized input.
func Composite(series map[domain.Variable]*mat.Dense) (*mat.SymDense, error) {
	if len(series) == 0 {
		return nil, errors.New("no variable matrices")
	}

	regions := -1
	for v, m := range series {
		if _, err := domain.ParseVariable(string(v)); err != nil {
			return nil, err
		}
		r, c := m.Dims()
		if regions == -1 {
			regions = r
		}
		if r != regions {
			return nil, fmt.Errorf("variable %q has %d regions, expected %d", v, r, regions)
		}
		if c == 0 {
			return nil, fmt.Errorf("variable %q has an empty time axis", v)
		}
	}

	// Accumulate in canonical variable order: map iteration order would make
	// the floating-point sums, and therefore tie-breaks downstream, vary
	// between runs.
	total := mat.NewSymDense(regions, nil)
	for _, v := range domain.Variables() {
		if m, ok := series[v]; ok {
			accumulate(total, m)
		}
	}
	return total, nil
}

// accumulate adds one variable's pairwise Euclidean distances into total.
func accumulate(total *mat.SymDense, m *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		ri := m.RawRowView(i)
		for j := i + 1; j < rows; j++ {
			rj := m.RawRowView(j)
			var sum float64
			for c := 0; c < cols; c++ {
				d := ri[c] - rj[c]
				sum += d * d
			}
			total.SetSym(i, j, total.At(i, j)+math.Sqrt(sum))
		}
	}
}
