package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by inspection events.
type Metrics struct {
	Analyses             *prometheus.CounterVec // labels: outcome={success,error}
	AnalysisDuration     prometheus.Histogram
	AverageConcentration prometheus.Histogram
	PixelsClassified     prometheus.Counter
	ImageFetches         *prometheus.CounterVec // labels: outcome={success,error}
	ResultsStored        *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heatmap_inspector",
			Name:      "analyses_total",
			Help:      "Heatmap analyses by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heatmap_inspector",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent classifying the pixels of one heatmap.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		AverageConcentration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heatmap_inspector",
			Name:      "average_concentration",
			Help:      "Distribution of computed average concentrations.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		PixelsClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heatmap_inspector",
			Name:      "pixels_classified_total",
			Help:      "Total pixels classified against a legend.",
		}),
		ImageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heatmap_inspector",
			Name:      "image_fetches_total",
			Help:      "Remote image fetches by outcome.",
		}, []string{"outcome"}),
		ResultsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heatmap_inspector",
			Name:      "results_stored_total",
			Help:      "Result table appends by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Analyses,
		m.AnalysisDuration,
		m.AverageConcentration,
		m.PixelsClassified,
		m.ImageFetches,
		m.ResultsStored,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry registers the metrics with reg, e.g. a fresh
// prometheus.NewRegistry() in tests to avoid "already registered" panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// MetricsObserver updates Prometheus metrics from inspection events
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver(metrics *Metrics) Observer {
	return &MetricsObserver{metrics: metrics}
}

// OnEvent handles inspection events by updating metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event InspectionEvent) {
	m := o.metrics
	switch event.EventType {
	case AnalysisCompleted:
		m.Analyses.WithLabelValues("success").Inc()
		m.AnalysisDuration.Observe(event.ProcessingTime.Seconds())
		if event.Result != nil {
			m.AverageConcentration.Observe(event.Result.AverageConcentration)
			m.PixelsClassified.Add(float64(event.Result.PixelCount))
		}
	case AnalysisFailed:
		m.Analyses.WithLabelValues("error").Inc()
	case ImageFetched:
		m.ImageFetches.WithLabelValues("success").Inc()
	case ImageFetchFailed:
		m.ImageFetches.WithLabelValues("error").Inc()
	case ResultStored:
		m.ResultsStored.WithLabelValues("success").Inc()
	case ResultStoreFailed:
		m.ResultsStored.WithLabelValues("error").Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}
