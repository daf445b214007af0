// Package csvsource decodes the provider's tabular export into domain
// observations. It implements pipeline.Source over any io.Reader; opening
// files or streams is the caller's concern.
package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/epi-clustering/internal/domain"
)

const dateLayout = "2006-01-02"

// Source reads observation rows from a CSV stream with a header row
// containing at least {date, region} plus the six variable columns.
type Source struct {
	r      io.Reader
	logger *slog.Logger
}

// New wraps a CSV stream as a pipeline source.
func New(r io.Reader, logger *slog.Logger) *Source {
	return &Source{r: r, logger: logger}
}

// Extract reads the entire stream. Blank variable cells become NaN (missing);
// malformed numbers and dates are errors, not silent gaps.
func (s *Source) Extract(ctx context.Context) ([]domain.Observation, error) {
	reader := csv.NewReader(s.r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var obs []domain.Observation
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		o, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		obs = append(obs, o)
	}

	s.logger.Info("csv source extracted", "rows", len(obs))
	return obs, nil
}

// columns maps field names to positions in the record.
type columns struct {
	date     int
	region   int
	variable map[domain.Variable]int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{date: -1, region: -1, variable: make(map[domain.Variable]int)}
	for i, name := range header {
		switch name = strings.TrimSpace(strings.ToLower(name)); name {
		case "date":
			cols.date = i
		case "region":
			cols.region = i
		default:
			if v, err := domain.ParseVariable(name); err == nil {
				cols.variable[v] = i
			}
			// Unknown columns pass through unused; the provider ships more
			// than we analyze.
		}
	}

	if cols.date < 0 {
		return columns{}, fmt.Errorf("csv header missing %q column", "date")
	}
	if cols.region < 0 {
		return columns{}, fmt.Errorf("csv header missing %q column", "region")
	}
	for _, v := range domain.Variables() {
		if _, ok := cols.variable[v]; !ok {
			return columns{}, fmt.Errorf("csv header missing %q column", v)
		}
	}
	return cols, nil
}

func parseRecord(record []string, cols columns) (domain.Observation, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(record[cols.date]))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse date: %w", err)
	}

	region := strings.TrimSpace(record[cols.region])
	if region == "" {
		return domain.Observation{}, fmt.Errorf("empty region")
	}

	values := make(map[domain.Variable]float64, len(cols.variable))
	for v, idx := range cols.variable {
		cell := strings.TrimSpace(record[idx])
		if cell == "" || strings.EqualFold(cell, "na") {
			values[v] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("parse %s: %w", v, err)
		}
		values[v] = f
	}

	return domain.Observation{Region: region, Date: date.UTC(), Values: values}, nil
}
