package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "metobs_export"

// Metrics holds the Prometheus counters, histograms, and gauges for a harvest run.
type Metrics struct {
	StationsDiscovered prometheus.Counter
	StationsQualified  prometheus.Counter
	StationsIngested   prometheus.Counter
	StationFailures    *prometheus.CounterVec // labels: reason={malformed,fetch}
	ReadingsRecorded   prometheus.Counter
	PipelineRunning    prometheus.Gauge

	// Transport metrics.
	FetchDuration prometheus.Histogram
	FetchRetries  prometheus.Counter

	// Export metrics.
	SheetsWritten  prometheus.Gauge
	CellsWritten   prometheus.Counter
	RowsPublished  prometheus.Counter
	ExportDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StationsDiscovered,
		m.StationsQualified,
		m.StationsIngested,
		m.StationFailures,
		m.ReadingsRecorded,
		m.PipelineRunning,
		m.FetchDuration,
		m.FetchRetries,
		m.SheetsWritten,
		m.CellsWritten,
		m.RowsPublished,
		m.ExportDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StationsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_discovered_total",
			Help:      "Stations listed by the catalog for the parameter, after the station limit.",
		}),
		StationsQualified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_qualified_total",
			Help:      "Stations that offer the qualifying archive period.",
		}),
		StationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_ingested_total",
			Help:      "Stations whose series was parsed and recorded.",
		}),
		StationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_failures_total",
			Help:      "Stations skipped or aborted by failure reason.",
		}, []string{"reason"}),
		ReadingsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_recorded_total",
			Help:      "Readings recorded into the matrix.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a harvest run is active, 0 otherwise.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of catalog and data requests including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retried catalog and data requests.",
		}),
		SheetsWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sheets_written",
			Help:      "Sheets in the last export.",
		}),
		CellsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_written_total",
			Help:      "Reading cells written to the workbook.",
		}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Daily rows published to Kafka.",
		}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of emitting and saving the workbook.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
