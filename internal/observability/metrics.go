package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh pipeline and its adapters.
type Metrics struct {
	RecordsFetched prometheus.Counter
	RecordsEmpty   prometheus.Counter
	RowsExpanded   prometheus.Counter
	RefreshRuns    *prometheus.CounterVec // labels: outcome={success,error}
	ServiceReady   prometheus.Gauge

	// Per-run shape and timing.
	RowsPerRefresh  prometheus.Histogram
	RefreshDuration prometheus.Histogram

	// Geospatial output metrics.
	RowsDropped    *prometheus.CounterVec // labels: stage={map,sink}, reason={missing,invalid_format,zero,out_of_range}
	UploadBatches  prometheus.Counter
	UploadFeatures prometheus.Counter
	UploadErrors   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "records_fetched_total",
			Help:      "Total source records read from the spreadsheet.",
		}),
		RecordsEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "records_empty_total",
			Help:      "Source records whose maximum value resolved to <= 0 and contributed no rows.",
		}),
		RowsExpanded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "rows_expanded_total",
			Help:      "Total derived rows produced by the unary expansion.",
		}),
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "refresh_runs_total",
			Help:      "Refresh runs by outcome.",
		}, []string{"outcome"}),
		ServiceReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incident_etl",
			Name:      "service_ready",
			Help:      "1 after the first successful refresh, 0 before.",
		}),
		RowsPerRefresh: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_etl",
			Name:      "rows_per_refresh",
			Help:      "Number of expanded rows produced by a single refresh.",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "incident_etl",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-expand-upload refresh.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "rows_dropped_total",
			Help:      "Rows excluded from geospatial output by stage and coordinate failure kind.",
		}, []string{"stage", "reason"}),
		UploadBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "upload_batches_total",
			Help:      "addFeatures requests sent to the feature layer.",
		}),
		UploadFeatures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "upload_features_total",
			Help:      "Point features accepted by the feature layer.",
		}),
		UploadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incident_etl",
			Name:      "upload_errors_total",
			Help:      "Failed addFeatures requests or rejected features.",
		}),
	}

	prometheus.MustRegister(
		m.RecordsFetched,
		m.RecordsEmpty,
		m.RowsExpanded,
		m.RefreshRuns,
		m.ServiceReady,
		m.RowsPerRefresh,
		m.RefreshDuration,
		m.RowsDropped,
		m.UploadBatches,
		m.UploadFeatures,
		m.UploadErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsFetched:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "incident_etl", Name: "records_fetched_total"}),
		RecordsEmpty:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "incident_etl", Name: "records_empty_total"}),
		RowsExpanded:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "incident_etl", Name: "rows_expanded_total"}),
		RefreshRuns:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "incident_etl", Name: "refresh_runs_total"}, []string{"outcome"}),
		ServiceReady:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "incident_etl", Name: "service_ready"}),
		RowsPerRefresh:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "incident_etl", Name: "rows_per_refresh"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "incident_etl", Name: "refresh_duration_seconds"}),
		RowsDropped:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "incident_etl", Name: "rows_dropped_total"}, []string{"stage", "reason"}),
		UploadBatches:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "incident_etl", Name: "upload_batches_total"}),
		UploadFeatures:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "incident_etl", Name: "upload_features_total"}),
		UploadErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "incident_etl", Name: "upload_errors_total"}),
	}
}
