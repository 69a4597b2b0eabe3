package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// flood-frequency analyzer.
type Metrics struct {
	AnalysesTotal        *prometheus.CounterVec // labels: outcome={success,fetch_error,empty}
	ObservationsRejected prometheus.Counter
	MaximaPublished      prometheus.Counter
	AnalyzerRunning      prometheus.Gauge
	AnalysisDuration     prometheus.Histogram

	// USGS adapter metrics.
	USGSRequestDuration prometheus.Histogram
	SeriesCache         *prometheus.CounterVec // labels: result={hit,miss}

	// Fitter adapter metrics.
	FitRequests   *prometheus.CounterVec // labels: outcome={success,non_convergence,error}
	FitterEnabled prometheus.Gauge
}

// NewMetrics creates and registers all analyzer metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodfreq",
			Name:      "analyses_total",
			Help:      "Per-station analysis runs by outcome.",
		}, []string{"outcome"}),
		ObservationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodfreq",
			Name:      "observations_rejected_total",
			Help:      "Fetched observations discarded for carrying no approved qualifier.",
		}),
		MaximaPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodfreq",
			Name:      "maxima_published_total",
			Help:      "Annual-maxima series published to the sink topic.",
		}),
		AnalyzerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodfreq",
			Name:      "analyzer_running",
			Help:      "1 when the analyzer loop is active, 0 when shut down.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodfreq",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete fetch-reduce-fit cycle for one station.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		USGSRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodfreq",
			Name:      "usgs_request_duration_seconds",
			Help:      "NWIS daily-values request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SeriesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodfreq",
			Name:      "series_cache_total",
			Help:      "Discharge-series cache lookups by result.",
		}, []string{"result"}),
		FitRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodfreq",
			Name:      "fit_requests_total",
			Help:      "GEV fitter requests by outcome.",
		}, []string{"outcome"}),
		FitterEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodfreq",
			Name:      "fitter_enabled",
			Help:      "1 when model-based estimation is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.ObservationsRejected,
		m.MaximaPublished,
		m.AnalyzerRunning,
		m.AnalysisDuration,
		m.USGSRequestDuration,
		m.SeriesCache,
		m.FitRequests,
		m.FitterEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysesTotal:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "floodfreq", Name: "analyses_total"}, []string{"outcome"}),
		ObservationsRejected: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "floodfreq", Name: "observations_rejected_total"}),
		MaximaPublished:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "floodfreq", Name: "maxima_published_total"}),
		AnalyzerRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "floodfreq", Name: "analyzer_running"}),
		AnalysisDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "floodfreq", Name: "analysis_duration_seconds"}),
		USGSRequestDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "floodfreq", Name: "usgs_request_duration_seconds"}),
		SeriesCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "floodfreq", Name: "series_cache_total"}, []string{"result"}),
		FitRequests:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "floodfreq", Name: "fit_requests_total"}, []string{"outcome"}),
		FitterEnabled:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "floodfreq", Name: "fitter_enabled"}),
	}
}
