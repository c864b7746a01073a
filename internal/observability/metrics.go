package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the risk
// engine: ingest throughput, training runs, and serving outcomes.
type Metrics struct {
	// Ingest metrics.
	RecordsConsumed  prometheus.Counter
	RecordsStored    prometheus.Counter
	IngestErrors     prometheus.Counter
	IngestRunning    prometheus.Gauge
	IngestBatchSize  prometheus.Histogram
	IngestBatchCycle prometheus.Histogram

	// Training metrics.
	TrainingRuns     *prometheus.CounterVec // labels: outcome={success,error}
	TrainingDuration prometheus.Histogram
	GridSamples      prometheus.Gauge
	SyntheticSamples prometheus.Gauge

	// Serving metrics.
	Predictions        *prometheus.CounterVec // labels: outcome={success,unknown_location,bad_hour,not_loaded}
	PredictionDuration prometheus.Histogram
	ModelLoaded        prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsConsumed,
		m.RecordsStored,
		m.IngestErrors,
		m.IngestRunning,
		m.IngestBatchSize,
		m.IngestBatchCycle,
		m.TrainingRuns,
		m.TrainingDuration,
		m.GridSamples,
		m.SyntheticSamples,
		m.Predictions,
		m.PredictionDuration,
		m.ModelLoaded,
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
		RecordsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_risk",
			Name:      "records_consumed_total",
			Help:      "Total raw incident records read from the source topic.",
		}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_risk",
			Name:      "records_stored_total",
			Help:      "Total observations appended to the observation store.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accident_risk",
			Name:      "ingest_errors_total",
			Help:      "Total records skipped because they failed to parse.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accident_risk",
			Name:      "ingest_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		IngestBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accident_risk",
			Name:      "ingest_batch_size",
			Help:      "Number of records per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		IngestBatchCycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accident_risk",
			Name:      "ingest_batch_cycle_seconds",
			Help:      "Duration of a complete extract-parse-store cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accident_risk",
			Name:      "training_runs_total",
			Help:      "Training runs by outcome.",
		}, []string{"outcome"}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accident_risk",
			Name:      "training_duration_seconds",
			Help:      "Wall-clock duration of a full training run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		GridSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accident_risk",
			Name:      "grid_samples",
			Help:      "Size of the dense training grid in the last run.",
		}),
		SyntheticSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accident_risk",
			Name:      "synthetic_samples",
			Help:      "Synthetic minority samples added by balancing in the last run.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accident_risk",
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accident_risk",
			Name:      "prediction_duration_seconds",
			Help:      "Latency of a single probability lookup.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "accident_risk",
			Name:      "model_loaded",
			Help:      "1 when a trained artifact is loaded and serving, 0 otherwise.",
		}),
	}
}
