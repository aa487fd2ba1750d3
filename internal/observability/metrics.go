package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// storm-image extraction pipeline.
type Metrics struct {
	StormObjectsConsumed prometheus.Counter
	ManifestsProduced    prometheus.Counter
	ExtractionErrors     prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Extraction metrics.
	ImagesExtracted  *prometheus.CounterVec   // labels: field
	GridLoadDuration *prometheus.HistogramVec // labels: field
	GridCacheLookups *prometheus.CounterVec   // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		StormObjectsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_nowcast",
			Name:      "storm_objects_consumed_total",
			Help:      "Total storm objects read from the source topic.",
		}),
		ManifestsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_nowcast",
			Name:      "manifests_produced_total",
			Help:      "Total image manifests written to the sink topic.",
		}),
		ExtractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_nowcast",
			Name:      "extraction_errors_total",
			Help:      "Total storm-image extraction failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_nowcast",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_nowcast",
			Name:      "batch_size",
			Help:      "Number of storm objects per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_nowcast",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ImagesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_nowcast",
			Name:      "images_extracted_total",
			Help:      "Storm images extracted, by radar field.",
		}, []string{"field"}),
		GridLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_nowcast",
			Name:      "grid_load_duration_seconds",
			Help:      "Time to load a full radar grid from disk, by radar field.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"field"}),
		GridCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_nowcast",
			Name:      "grid_cache_lookups_total",
			Help:      "Full-grid cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.StormObjectsConsumed,
		m.ManifestsProduced,
		m.ExtractionErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ImagesExtracted,
		m.GridLoadDuration,
		m.GridCacheLookups,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		StormObjectsConsumed:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_nowcast", Name: "storm_objects_consumed_total"}),
		ManifestsProduced:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_nowcast", Name: "manifests_produced_total"}),
		ExtractionErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "storm_nowcast", Name: "extraction_errors_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "storm_nowcast", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "storm_nowcast", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "storm_nowcast", Name: "batch_processing_duration_seconds"}),
		ImagesExtracted:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "storm_nowcast", Name: "images_extracted_total"}, []string{"field"}),
		GridLoadDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "storm_nowcast", Name: "grid_load_duration_seconds"}, []string{"field"}),
		GridCacheLookups:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "storm_nowcast", Name: "grid_cache_lookups_total"}, []string{"result"}),
	}
}
