package preprocess_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/epi-clustering/internal/domain"
	"github.com/couchcryptid/epi-clustering/internal/preprocess"
)

func TestLowess_ReproducesLinearTrend(t *testing.T) {
	const n = 100
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = 2*float64(i) + 1
	}

	smoothed, err := preprocess.Lowess(xs, ys, 0.2)
	require.NoError(t, err)
	for i := range smoothed {
		assert.InDelta(t, ys[i], smoothed[i], 1e-9, "index %d", i)
	}
}

func TestLowess_ReducesNoise(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(7))
	xs := make([]float64, n)
	truth := make([]float64, n)
	noisy := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
		truth[i] = math.Sin(2 * math.Pi * float64(i) / float64(n))
		noisy[i] = truth[i] + 0.3*rng.NormFloat64()
	}

	smoothed, err := preprocess.Lowess(xs, noisy, 0.15)
	require.NoError(t, err)

	assert.Less(t, sumSq(smoothed, truth), sumSq(noisy, truth),
		"smoothed curve should sit closer to the underlying signal than the raw one")
}

func TestLowess_LengthMismatch(t *testing.T) {
	_, err := preprocess.Lowess([]float64{1, 2, 3}, []float64{1, 2}, 0.5)
	assert.Error(t, err)
}

func TestLowess_TinySeries(t *testing.T) {
	// Span 0.05 of 3 points clamps the neighborhood to 2; still defined.
	smoothed, err := preprocess.Lowess([]float64{0, 1, 2}, []float64{1, 3, 5}, 0.05)
	require.NoError(t, err)
	assert.Len(t, smoothed, 3)
}

func TestTransform_StandardizedMoments(t *testing.T) {
	panel := syntheticPanel(t, 4, 120, func(r, c int, v domain.Variable) float64 {
		// Different shapes and scales per region and variable.
		return float64(r+1)*math.Sin(float64(c)/9+float64(r)) + 100*float64(r) + float64(c)
	})

	out, err := preprocess.Transform(panel, 0.05)
	require.NoError(t, err)

	for _, v := range domain.Variables() {
		for r := 0; r < out.NumRegions(); r++ {
			series := out.RegionSeries(v, r)
			mean, std := stat.MeanStdDev(series, nil)
			assert.InDelta(t, 0, mean, 1e-9, "mean of %s region %d", v, r)
			assert.InDelta(t, 1, std, 1e-9, "std of %s region %d", v, r)
		}
	}
}

func TestTransform_SharesAxes(t *testing.T) {
	panel := syntheticPanel(t, 2, 30, func(r, c int, v domain.Variable) float64 {
		return float64(c) + float64(r)
	})

	out, err := preprocess.Transform(panel, 0.1)
	require.NoError(t, err)
	assert.Equal(t, panel.Regions, out.Regions)
	assert.Equal(t, panel.Dates, out.Dates)
}

func TestTransform_ConstantSeriesFails(t *testing.T) {
	panel := syntheticPanel(t, 2, 30, func(r, c int, v domain.Variable) float64 {
		if v == domain.VarICU && r == 1 {
			return 5 // flat gauge
		}
		return float64(c) * float64(r+1)
	})

	_, err := preprocess.Transform(panel, 0.1)
	require.ErrorIs(t, err, preprocess.ErrConstantSeries)
	assert.Contains(t, err.Error(), "icu")
}

func TestTransform_BadSpan(t *testing.T) {
	panel := syntheticPanel(t, 2, 10, func(r, c int, v domain.Variable) float64 {
		return float64(c)
	})
	_, err := preprocess.Transform(panel, 0)
	assert.Error(t, err)
}

// sumSq is the sum of squared differences between two equal-length series.
func sumSq(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// syntheticPanel builds a rectangular panel with cell values from fn.
func syntheticPanel(t *testing.T, regions, days int, fn func(r, c int, v domain.Variable) float64) *domain.Panel {
	t.Helper()
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	names := make([]string, regions)
	dates := make([]time.Time, days)
	for i := range names {
		names[i] = string(rune('A' + i))
	}
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}

	series := make(map[domain.Variable]*mat.Dense)
	for _, v := range domain.Variables() {
		m := mat.NewDense(regions, days, nil)
		for r := 0; r < regions; r++ {
			for c := 0; c < days; c++ {
				m.Set(r, c, fn(r, c, v))
			}
		}
		series[v] = m
	}
	return &domain.Panel{Regions: names, Dates: dates, Series: series}
}
