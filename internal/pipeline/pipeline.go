// Package pipeline runs the four analysis stages in order: clean,
// preprocess, composite distance, cluster selection. One run, one
// Assignment; every failure is fatal to the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-clustering/internal/clean"
	"github.com/couchcryptid/epi-clustering/internal/cluster"
	"github.com/couchcryptid/epi-clustering/internal/distance"
	"github.com/couchcryptid/epi-clustering/internal/domain"
	"github.com/couchcryptid/epi-clustering/internal/observability"
	"github.com/couchcryptid/epi-clustering/internal/preprocess"
)

// Source provides the raw observation rows for one run.
type Source interface {
	Extract(ctx context.Context) ([]domain.Observation, error)
}

// Sink receives the final assignment, e.g. a message broker for downstream
// reporting.
type Sink interface {
	Publish(ctx context.Context, a *domain.Assignment) error
}

// Options fixes one run's analysis parameters.
type Options struct {
	Clean      clean.Params
	LowessSpan float64
	MaxK       int
	Bootstrap  int
	Seed       uint64
}

// Pipeline orchestrates a single batch analysis.
type Pipeline struct {
	source  Source
	sink    Sink // nil disables publishing
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline with the given edges and observability.
func New(source Source, sink Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:  source,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes extract → clean → preprocess → distance → cluster once and
// returns the assignment. A fixed seed makes repeated runs over identical
// input produce identical assignments.
func (p *Pipeline) Run(ctx context.Context) (*domain.Assignment, error) {
	p.metrics.RunActive.Set(1)
	defer p.metrics.RunActive.Set(0)

	obs, err := p.source.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	p.metrics.RowsExtracted.Add(float64(len(obs)))
	p.logger.Info("extracted raw rows", "rows", len(obs))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	panel, report, err := p.runClean(obs)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pre, err := p.runPreprocess(panel)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dendrogram, err := p.runDistance(pre)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assignment, err := p.runCluster(pre, dendrogram)
	if err != nil {
		return nil, err
	}

	p.logger.Info("analysis complete",
		"k", assignment.K,
		"regions", len(assignment.Labels),
		"rows_cleaned", report.RowsOut,
	)

	if p.sink != nil {
		if err := p.sink.Publish(ctx, assignment); err != nil {
			return nil, fmt.Errorf("publish assignment: %w", err)
		}
		p.logger.Info("assignment published")
	}

	return assignment, nil
}

func (p *Pipeline) runClean(obs []domain.Observation) (*domain.Panel, clean.Report, error) {
	start := time.Now()
	panel, report, err := clean.Clean(obs, p.opts.Clean)
	if err != nil {
		return nil, report, fmt.Errorf("clean: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("clean").Observe(time.Since(start).Seconds())
	p.metrics.RowsCleaned.Add(float64(report.RowsOut))
	p.metrics.RowsDropped.Add(float64(report.Duplicates + report.OutOfScope))
	p.metrics.ValuesInterpolated.Add(float64(report.Interpolated))
	p.logger.Info("panel cleaned",
		"regions", panel.NumRegions(),
		"days", panel.NumDays(),
		"duplicates", report.Duplicates,
		"out_of_scope", report.OutOfScope,
		"interpolated", report.Interpolated,
	)
	return panel, report, nil
}

func (p *Pipeline) runPreprocess(panel *domain.Panel) (*domain.Panel, error) {
	start := time.Now()
	pre, err := preprocess.Transform(panel, p.opts.LowessSpan)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())
	p.logger.Info("series smoothed and standardized", "span", p.opts.LowessSpan)
	return pre, nil
}

func (p *Pipeline) runDistance(pre *domain.Panel) (*cluster.Dendrogram, error) {
	start := time.Now()
	composite, err := distance.Composite(pre.Series)
	if err != nil {
		return nil, fmt.Errorf("distance: %w", err)
	}
	dendrogram, err := cluster.Agglomerate(composite)
	if err != nil {
		return nil, fmt.Errorf("distance: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("distance").Observe(time.Since(start).Seconds())
	p.logger.Info("composite distance built", "regions", pre.NumRegions())
	return dendrogram, nil
}

func (p *Pipeline) runCluster(pre *domain.Panel, dendrogram *cluster.Dendrogram) (*domain.Assignment, error) {
	start := time.Now()
	sel, err := cluster.SelectK(pre.Series, cluster.GapOptions{
		MaxK:      p.opts.MaxK,
		Bootstrap: p.opts.Bootstrap,
		Seed:      p.opts.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	p.metrics.BootstrapSamples.Add(float64(p.opts.Bootstrap))

	labels, err := dendrogram.Cut(sel.K)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("cluster").Observe(time.Since(start).Seconds())
	p.metrics.SelectedK.Set(float64(sel.K))

	byRegion := make(map[string]int, len(labels))
	for i, region := range pre.Regions {
		byRegion[region] = labels[i]
	}

	return &domain.Assignment{
		GeneratedAt: domain.Now(),
		K:           sel.K,
		Labels:      byRegion,
		GapTable:    sel.Table,
		Merges:      dendrogram.Merges,
	}, nil
}
