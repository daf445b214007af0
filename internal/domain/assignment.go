package domain

import "time"

// GapRow holds the gap statistic for one candidate cluster count.
type GapRow struct {
	K       int     `json:"k"`
	LogW    float64 `json:"log_w"`      // observed log within-cluster dispersion
	ExpLogW float64 `json:"exp_log_w"`  // expected log dispersion under the uniform null
	Gap     float64 `json:"gap"`        // ExpLogW - LogW
	SE      float64 `json:"se"`         // Monte Carlo standard error of ExpLogW
}

// Merge records one dendrogram join: the two cluster ids merged and the
// complete-linkage distance at which they joined. Leaves are ids 0..n-1;
// the merge creating cluster n+i is Merges[i].
type Merge struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Height float64 `json:"height"`
}

// Assignment is the pipeline's final artifact: every region mapped to a
// cluster label in 1..K, plus the model-selection evidence.
type Assignment struct {
	GeneratedAt time.Time      `json:"generated_at"`
	K           int            `json:"k"`
	Labels      map[string]int `json:"labels"`
	GapTable    []GapRow       `json:"gap_table"`
	Merges      []Merge        `json:"merges"`
}
