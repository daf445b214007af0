package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Observation is a single raw input row: one region, one date, one reading
// per variable. Missing readings are NaN.
type Observation struct {
	Region string
	Date   time.Time
	Values map[Variable]float64
}

// Value returns the reading for v, or NaN when the row carries none.
func (o Observation) Value(v Variable) float64 {
	if o.Values == nil {
		return math.NaN()
	}
	val, ok := o.Values[v]
	if !ok {
		return math.NaN()
	}
	return val
}

// Panel is the rectangular cleaned dataset: one matrix per variable, laid out
// regions x days, with shared region and date axes. Panels are immutable once
// built; stages derive new Panels rather than mutating.
type Panel struct {
	Regions []string
	Dates   []time.Time
	Series  map[Variable]*mat.Dense
}

// NumRegions returns the number of regions on the panel's row axis.
func (p *Panel) NumRegions() int { return len(p.Regions) }

// NumDays returns the number of dates on the panel's column axis.
func (p *Panel) NumDays() int { return len(p.Dates) }

// RegionSeries returns a copy of one region's time series for a variable.
func (p *Panel) RegionSeries(v Variable, regionIdx int) []float64 {
	m := p.Series[v]
	out := make([]float64, p.NumDays())
	mat.Row(out, regionIdx, m)
	return out
}
