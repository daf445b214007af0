package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis pipeline.
type Metrics struct {
	RowsExtracted      prometheus.Counter
	RowsCleaned        prometheus.Counter
	RowsDropped        prometheus.Counter
	ValuesInterpolated prometheus.Counter
	BootstrapSamples   prometheus.Counter

	StageDuration *prometheus.HistogramVec // label: stage={clean,preprocess,distance,cluster}
	SelectedK     prometheus.Gauge
	RunActive     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsExtracted,
		m.RowsCleaned,
		m.RowsDropped,
		m.ValuesInterpolated,
		m.BootstrapSamples,
		m.StageDuration,
		m.SelectedK,
		m.RunActive,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_clustering",
			Name:      "rows_extracted_total",
			Help:      "Raw observation rows read from the source.",
		}),
		RowsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_clustering",
			Name:      "rows_cleaned_total",
			Help:      "Rows in the cleaned panel.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_clustering",
			Name:      "rows_dropped_total",
			Help:      "Rows removed by selection and deduplication.",
		}),
		ValuesInterpolated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_clustering",
			Name:      "values_interpolated_total",
			Help:      "Missing cells filled by linear interpolation.",
		}),
		BootstrapSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "epi_clustering",
			Name:      "bootstrap_samples_total",
			Help:      "Null-reference replicates drawn by the gap statistic.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "epi_clustering",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		SelectedK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epi_clustering",
			Name:      "selected_k",
			Help:      "Cluster count chosen by the gap statistic in the last run.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epi_clustering",
			Name:      "run_active",
			Help:      "1 while an analysis run is in flight, 0 otherwise.",
		}),
	}
}
