// Package cluster groups regions by agglomerative hierarchical clustering
// over a composite distance matrix and picks the cluster count with a
// bootstrap gap statistic.
package cluster

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

// Dendrogram is the binary merge tree produced by complete-linkage
// clustering. Leaves carry ids 0..n-1; the merge at Merges[i] creates
// cluster id n+i. Complete linkage makes the heights non-decreasing.
type Dendrogram struct {
	n      int
	Merges []domain.Merge
}

// Agglomerate builds the complete-linkage dendrogram for a symmetric
// distance matrix: at every step the two clusters whose maximum pairwise
// member distance is smallest are merged at that distance.
func Agglomerate(d *mat.SymDense) (*Dendrogram, error) {
	n, _ := d.Dims()
	if n < 2 {
		return nil, errors.New("need at least two regions to cluster")
	}

	// Working inter-cluster distances between the active clusters.
	work := make([][]float64, n)
	for i := range work {
		work[i] = make([]float64, n)
		for j := range work[i] {
			work[i][j] = d.At(i, j)
		}
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}

	dg := &Dendrogram{n: n, Merges: make([]domain.Merge, 0, n-1)}
	for step := 0; step < n-1; step++ {
		bi, bj := -1, -1
		best := 0.0
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if bi < 0 || work[i][j] < best {
					bi, bj, best = i, j, work[i][j]
				}
			}
		}

		a, b := ids[bi], ids[bj]
		if a > b {
			a, b = b, a
		}
		dg.Merges = append(dg.Merges, domain.Merge{A: a, B: b, Height: best})

		// Lance-Williams update for complete linkage: the merged cluster's
		// distance to any other is the max of its parents' distances.
		for x := 0; x < len(ids); x++ {
			if x == bi || x == bj {
				continue
			}
			m := work[bi][x]
			if work[bj][x] > m {
				m = work[bj][x]
			}
			work[bi][x] = m
			work[x][bi] = m
		}
		ids[bi] = n + step

		// Drop position bj.
		last := len(ids) - 1
		ids[bj] = ids[last]
		ids = ids[:last]
		for x := 0; x <= last; x++ {
			work[x][bj] = work[x][last]
			work[bj][x] = work[last][x]
		}
		work[bj][bj] = 0
	}

	return dg, nil
}

// Leaves returns the number of observations under the tree.
func (dg *Dendrogram) Leaves() int { return dg.n }

// Heights returns the merge heights in merge order.
func (dg *Dendrogram) Heights() []float64 {
	out := make([]float64, len(dg.Merges))
	for i, m := range dg.Merges {
		out[i] = m.Height
	}
	return out
}

// Cut assigns every leaf to one of exactly k clusters by replaying the first
// n-k merges. Labels run 1..k, numbered by each cluster's lowest leaf index
// so the assignment is deterministic.
func (dg *Dendrogram) Cut(k int) ([]int, error) {
	if k < 1 || k > dg.n {
		return nil, fmt.Errorf("cannot cut %d leaves into %d clusters", dg.n, k)
	}

	members := make(map[int][]int, dg.n)
	for i := 0; i < dg.n; i++ {
		members[i] = []int{i}
	}
	for step := 0; step < dg.n-k; step++ {
		m := dg.Merges[step]
		merged := append(members[m.A], members[m.B]...)
		delete(members, m.A)
		delete(members, m.B)
		members[dg.n+step] = merged
	}

	// Order clusters by lowest member for stable label numbering.
	clusters := make([][]int, 0, k)
	for _, leaves := range members {
		sort.Ints(leaves)
		clusters = append(clusters, leaves)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })

	labels := make([]int, dg.n)
	for label, leaves := range clusters {
		for _, leaf := range leaves {
			labels[leaf] = label + 1
		}
	}
	return labels, nil
}
