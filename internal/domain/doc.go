// Package domain models the epidemiological panel that the clustering
// pipeline consumes and the artifacts it derives.
//
// # Data Source
//
// Input rows originate from a country-level epidemiological data provider
// keyed by region and date, one row per (region, date) with six daily
// indicators: confirmed, deaths, tests, vaccines, hosp, icu. The provider is
// an opaque upstream collaborator; this service only sees the tabular export.
//
// # Indicator Conventions
//
// Cumulative counters:
//
//	confirmed, deaths, tests, vaccines are running totals since tracking
//	began. The cleaner replaces them with first differences along the date
//	axis (value[t] - value[t-1]) to obtain daily increments, which drops the
//	first date of every region.
//
// Gauges:
//
//	hosp and icu are point-in-time occupancy readings and pass through
//	differencing untouched.
//
// Missing values:
//
//	Represented as NaN throughout. Interior gaps in the tests series are
//	linearly interpolated per region; gaps at either end of a region's
//	series are a hard error rather than a silent fill, because fabricated
//	boundary levels would turn into fabricated increments downstream.
//
// # Panel Invariants
//
// A cleaned Panel is rectangular: every region carries exactly the same date
// axis, every (region, date, variable) cell is populated, and the per-variable
// matrices are laid out regions x days so a region's full time series is a
// matrix row. Panels are built once and never mutated; downstream stages
// derive new artifacts instead.
package domain
