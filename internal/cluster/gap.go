package cluster

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/epi-clustering/internal/distance"
	"github.com/couchcryptid/epi-clustering/internal/domain"
)

// ErrDegenerate indicates a dispersion the gap statistic cannot use: zero or
// non-finite within-cluster dispersion, typically from constant input where
// all pairwise distances collapse.
var ErrDegenerate = errors.New("degenerate dispersion")

// GapOptions tunes the gap-statistic model selection.
type GapOptions struct {
	MaxK      int    // candidate cluster counts 1..MaxK
	Bootstrap int    // null-reference replicates per k
	Seed      uint64 // fixed seed makes the selection reproducible
}

// Selection is the outcome of gap-statistic model selection.
type Selection struct {
	K     int
	Table []domain.GapRow
}

// SelectK chooses the cluster count for the preprocessed per-variable data
// matrices. For every candidate k it compares observed log within-cluster
// dispersion against its expectation under a no-structure null (uniform over
// each feature column's observed range), re-deriving the composite distance
// and the clustering for every bootstrap replicate through the same builder
// the main pipeline uses. The smallest k within one standard error of the
// first local maximum of the gap curve wins (firstSEmax).
func SelectK(series map[domain.Variable]*mat.Dense, opts GapOptions) (Selection, error) {
	obs, err := distance.Composite(series)
	if err != nil {
		return Selection{}, err
	}
	n, _ := obs.Dims()
	if opts.MaxK < 1 || opts.MaxK > n-1 {
		return Selection{}, fmt.Errorf("max k %d out of range for %d regions", opts.MaxK, n)
	}
	if opts.Bootstrap < 1 {
		return Selection{}, errors.New("bootstrap sample count must be positive")
	}

	logW, err := dispersionCurve(obs, opts.MaxK)
	if err != nil {
		return Selection{}, fmt.Errorf("observed clustering: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	logWStar := make([][]float64, opts.MaxK) // [k-1][b]
	for i := range logWStar {
		logWStar[i] = make([]float64, opts.Bootstrap)
	}
	for b := 0; b < opts.Bootstrap; b++ {
		null := uniformNull(series, rng)
		nullD, err := distance.Composite(null)
		if err != nil {
			return Selection{}, fmt.Errorf("bootstrap replicate %d: %w", b, err)
		}
		curve, err := dispersionCurve(nullD, opts.MaxK)
		if err != nil {
			return Selection{}, fmt.Errorf("bootstrap replicate %d: %w", b, err)
		}
		for i := range curve {
			logWStar[i][b] = curve[i]
		}
	}

	table := make([]domain.GapRow, opts.MaxK)
	gaps := make([]float64, opts.MaxK)
	ses := make([]float64, opts.MaxK)
	for i := 0; i < opts.MaxK; i++ {
		expLogW := stat.Mean(logWStar[i], nil)
		sd := stat.PopStdDev(logWStar[i], nil)
		se := sd * math.Sqrt(1+1/float64(opts.Bootstrap))
		gaps[i] = expLogW - logW[i]
		ses[i] = se
		table[i] = domain.GapRow{
			K:       i + 1,
			LogW:    logW[i],
			ExpLogW: expLogW,
			Gap:     gaps[i],
			SE:      se,
		}
	}

	return Selection{K: firstSEmax(gaps, ses), Table: table}, nil
}

// dispersionCurve clusters d at every candidate k and returns log W_k.
func dispersionCurve(d *mat.SymDense, maxK int) ([]float64, error) {
	dg, err := Agglomerate(d)
	if err != nil {
		return nil, err
	}
	out := make([]float64, maxK)
	for k := 1; k <= maxK; k++ {
		labels, err := dg.Cut(k)
		if err != nil {
			return nil, err
		}
		w := dispersion(d, labels, k)
		if w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			return nil, fmt.Errorf("%w at k=%d (W=%g)", ErrDegenerate, k, w)
		}
		out[k-1] = math.Log(w)
	}
	return out, nil
}

// dispersion computes W_k = Σ_r D_r/(2 n_r) from the distance matrix, where
// D_r sums all pairwise distances inside cluster r.
func dispersion(d *mat.SymDense, labels []int, k int) float64 {
	sums := make([]float64, k+1)
	sizes := make([]int, k+1)
	n := len(labels)
	for _, l := range labels {
		sizes[l]++
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if labels[i] == labels[j] {
				sums[labels[i]] += d.At(i, j)
			}
		}
	}

	var w float64
	for l := 1; l <= k; l++ {
		if sizes[l] > 0 {
			// D_r counts ordered pairs, i.e. twice the i<j sum, so the
			// 2*n_r denominator reduces to n_r here.
			w += sums[l] / float64(sizes[l])
		}
	}
	return w
}

// uniformNull draws one reference dataset: for each variable, a matrix of
// the same shape with every column sampled uniformly over that column's
// observed [min, max]. Variables are visited in canonical order so a fixed
// seed yields a fixed draw sequence.
func uniformNull(series map[domain.Variable]*mat.Dense, rng *rand.Rand) map[domain.Variable]*mat.Dense {
	out := make(map[domain.Variable]*mat.Dense, len(series))
	for _, v := range domain.Variables() {
		m, ok := series[v]
		if !ok {
			continue
		}
		rows, cols := m.Dims()
		sample := mat.NewDense(rows, cols, nil)
		for c := 0; c < cols; c++ {
			lo, hi := columnRange(m, c)
			u := distuv.Uniform{Min: lo, Max: hi, Src: rng}
			for r := 0; r < rows; r++ {
				sample.Set(r, c, u.Rand())
			}
		}
		out[v] = sample
	}
	return out
}

func columnRange(m *mat.Dense, c int) (float64, float64) {
	rows, _ := m.Dims()
	lo, hi := m.At(0, c), m.At(0, c)
	for r := 1; r < rows; r++ {
		v := m.At(r, c)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// firstSEmax picks the smallest k whose gap is within one standard error of
// the first local maximum of the gap curve: parsimony traded against Monte
// Carlo noise in the null estimate.
func firstSEmax(gaps, ses []float64) int {
	kStar := len(gaps) - 1
	for i := 0; i < len(gaps)-1; i++ {
		if gaps[i] >= gaps[i+1] {
			kStar = i
			break
		}
	}

	threshold := gaps[kStar] - ses[kStar]
	for i := 0; i <= kStar; i++ {
		if gaps[i] >= threshold {
			return i + 1
		}
	}
	return kStar + 1
}
