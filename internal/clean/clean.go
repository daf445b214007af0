// Package clean turns raw provider rows into a rectangular, fully-populated
// panel: selection, deduplication, ordering, gap interpolation, and
// differencing of cumulative counters.
package clean

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

var (
	// ErrNoData indicates the region/window selection matched nothing, e.g. a
	// misspelled region name.
	ErrNoData = errors.New("no data after selection")

	// ErrBoundaryGap indicates a missing value at the start or end of a
	// region's series, where linear interpolation has no anchor on one side.
	ErrBoundaryGap = errors.New("missing value at series boundary")

	// ErrMissing indicates unresolved missing values after interpolation and
	// the first-date drop.
	ErrMissing = errors.New("unresolved missing values")

	// ErrConflict indicates two rows for the same region and date carrying
	// different values; there is no principled way to pick one.
	ErrConflict = errors.New("conflicting duplicate rows")
)

// Params fixes the selection that defines the panel.
type Params struct {
	Regions     []string
	WindowStart time.Time
	WindowEnd   time.Time
}

// Report summarizes what cleaning did, for logging and metrics.
type Report struct {
	RowsIn       int
	Duplicates   int
	OutOfScope   int
	Interpolated int
	RowsOut      int
}

// Clean produces a panel satisfying the rectangular no-missing invariants:
// every configured region carries every date in the window (minus the first,
// dropped by differencing) and no cell is NaN.
func Clean(obs []domain.Observation, p Params) (*domain.Panel, Report, error) {
	report := Report{RowsIn: len(obs)}

	days := int(p.WindowEnd.Sub(p.WindowStart).Hours()/24) + 1
	if days < 2 {
		return nil, report, fmt.Errorf("window %s..%s too short to difference", p.WindowStart.Format("2006-01-02"), p.WindowEnd.Format("2006-01-02"))
	}

	regions := append([]string(nil), p.Regions...)
	sort.Strings(regions)
	regionIdx := make(map[string]int, len(regions))
	for i, r := range regions {
		regionIdx[r] = i
	}

	selected, err := selectAndDedupe(obs, regionIdx, p, &report)
	if err != nil {
		return nil, report, err
	}
	if len(selected) == 0 {
		return nil, report, ErrNoData
	}

	// Sort by date then region: differencing below walks the date axis and
	// depends on this ordering.
	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].Date.Equal(selected[j].Date) {
			return selected[i].Date.Before(selected[j].Date)
		}
		return selected[i].Region < selected[j].Region
	})

	series, seen := toMatrices(selected, regionIdx, p.WindowStart, days)

	for r, region := range regions {
		if !seen[r] {
			return nil, report, fmt.Errorf("%w: region %q has no rows in window", ErrNoData, region)
		}
	}

	// Interior gaps in the tests series are interpolated per region before
	// differencing; a gap touching either end of the window is fatal.
	tests := series[domain.VarTests]
	for r, region := range regions {
		row := tests.RawRowView(r)
		n, err := interpolateRow(row)
		if err != nil {
			return nil, report, fmt.Errorf("%w: region %q variable %q", err, region, domain.VarTests)
		}
		report.Interpolated += n
	}

	out := make(map[domain.Variable]*mat.Dense, len(series))
	for _, v := range domain.Variables() {
		m := series[v]
		if v.Cumulative() {
			m = difference(m)
		} else {
			m = dropFirstColumn(m)
		}
		out[v] = m
	}

	dates := make([]time.Time, days-1)
	for i := range dates {
		dates[i] = p.WindowStart.AddDate(0, 0, i+1)
	}

	panel := &domain.Panel{Regions: regions, Dates: dates, Series: out}
	if err := auditComplete(panel); err != nil {
		return nil, report, err
	}

	report.RowsOut = len(regions) * (days - 1)
	return panel, report, nil
}

// selectAndDedupe keeps rows inside the configured region set and date
// window, removes exact duplicates, and rejects rows that share a (region,
// date) cell with different values.
func selectAndDedupe(obs []domain.Observation, regionIdx map[string]int, p Params, report *Report) ([]domain.Observation, error) {
	seen := make(map[string]string, len(obs)) // (region, date) -> value key
	var out []domain.Observation
	for _, o := range obs {
		if _, ok := regionIdx[o.Region]; !ok {
			report.OutOfScope++
			continue
		}
		if o.Date.Before(p.WindowStart) || o.Date.After(p.WindowEnd) {
			report.OutOfScope++
			continue
		}
		cell := o.Region + "|" + o.Date.Format("2006-01-02")
		values := valueKey(o)
		if prev, ok := seen[cell]; ok {
			if prev == values {
				report.Duplicates++
				continue
			}
			return nil, fmt.Errorf("%w: region %q date %s", ErrConflict, o.Region, o.Date.Format("2006-01-02"))
		}
		seen[cell] = values
		out = append(out, o)
	}
	return out, nil
}

// valueKey renders a row's variables in canonical order so exact duplicates
// collapse to the same key. NaN formats stably as "NaN".
func valueKey(o domain.Observation) string {
	var b strings.Builder
	for _, v := range domain.Variables() {
		fmt.Fprintf(&b, "|%g", o.Value(v))
	}
	return b.String()
}

// toMatrices lays the selected rows out as one regions x days matrix per
// variable, NaN where no row covers a cell. seen flags regions with at least
// one row.
func toMatrices(obs []domain.Observation, regionIdx map[string]int, start time.Time, days int) (map[domain.Variable]*mat.Dense, []bool) {
	series := make(map[domain.Variable]*mat.Dense, len(domain.Variables()))
	for _, v := range domain.Variables() {
		m := mat.NewDense(len(regionIdx), days, nil)
		for i := 0; i < len(regionIdx); i++ {
			for j := 0; j < days; j++ {
				m.Set(i, j, math.NaN())
			}
		}
		series[v] = m
	}

	seen := make([]bool, len(regionIdx))
	for _, o := range obs {
		r := regionIdx[o.Region]
		d := int(o.Date.Sub(start).Hours() / 24)
		seen[r] = true
		for _, v := range domain.Variables() {
			series[v].Set(r, d, o.Value(v))
		}
	}
	return series, seen
}

// interpolateRow fills interior NaN runs in place by linear interpolation
// between the nearest known values on either side. Returns the number of
// filled cells; a NaN before the first or after the last known value is
// ErrBoundaryGap.
func interpolateRow(row []float64) (int, error) {
	n := len(row)
	first, last := -1, -1
	for i, v := range row {
		if !math.IsNaN(v) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first > 0 || last < n-1 {
		return 0, ErrBoundaryGap
	}

	filled := 0
	for i := 1; i < n; i++ {
		if !math.IsNaN(row[i]) {
			continue
		}
		lo := i - 1
		hi := i
		for hi < n && math.IsNaN(row[hi]) {
			hi++
		}
		step := (row[hi] - row[lo]) / float64(hi-lo)
		for j := i; j < hi; j++ {
			row[j] = row[lo] + step*float64(j-lo)
			filled++
		}
		i = hi
	}
	return filled, nil
}

// difference replaces each value with its first difference along the date
// axis, dropping the first column, which differencing leaves undefined.
func difference(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols-1, nil)
	for r := 0; r < rows; r++ {
		for c := 1; c < cols; c++ {
			out.Set(r, c-1, m.At(r, c)-m.At(r, c-1))
		}
	}
	return out
}

// dropFirstColumn aligns gauge variables with the differenced counters, which
// lose the window's first date.
func dropFirstColumn(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols-1, nil)
	for r := 0; r < rows; r++ {
		for c := 1; c < cols; c++ {
			out.Set(r, c-1, m.At(r, c))
		}
	}
	return out
}

// auditComplete enforces the zero-missing output guarantee.
func auditComplete(p *domain.Panel) error {
	for _, v := range domain.Variables() {
		m := p.Series[v]
		rows, cols := m.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if math.IsNaN(m.At(r, c)) {
					return fmt.Errorf("%w: region %q variable %q date %s",
						ErrMissing, p.Regions[r], v, p.Dates[c].Format("2006-01-02"))
				}
			}
		}
	}
	return nil
}
