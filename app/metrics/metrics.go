// Package metrics bundles the Prometheus collectors exposed by the
// harvest service on its own registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvest pipeline.
type Metrics struct {
	Registry          *prometheus.Registry
	UnitsDiscovered   prometheus.Counter
	DownloadsTotal    *prometheus.CounterVec
	ConversionsTotal  *prometheus.CounterVec
	PackagesPublished prometheus.Counter
	StageFailures     *prometheus.CounterVec
	ImportDuration    prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	unitsDiscovered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_units_discovered_total",
			Help: "Total catalog entries persisted by the discover stage.",
		},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_downloads_total",
			Help: "Total file downloads by result.",
		},
		[]string{"result"},
	)
	conversions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_conversions_total",
			Help: "Total vector file conversions by result.",
		},
		[]string{"result"},
	)
	packagesPublished := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_packages_published_total",
			Help: "Total packages published to the catalog.",
		},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_stage_failures_total",
			Help: "Total harvest units marked failed, by stage.",
		},
		[]string{"stage"},
	)
	importDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_import_duration_seconds",
			Help:    "Wall-clock duration of the import stage per unit.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(unitsDiscovered, downloads, conversions, packagesPublished, stageFailures, importDuration)

	return &Metrics{
		Registry:          registry,
		UnitsDiscovered:   unitsDiscovered,
		DownloadsTotal:    downloads,
		ConversionsTotal:  conversions,
		PackagesPublished: packagesPublished,
		StageFailures:     stageFailures,
		ImportDuration:    importDuration,
	}
}

// IncUnitsDiscovered increments the discovered units counter.
func (m *Metrics) IncUnitsDiscovered() {
	if m == nil {
		return
	}
	m.UnitsDiscovered.Inc()
}

// IncDownload increments the downloads counter for a result label.
func (m *Metrics) IncDownload(result string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result).Inc()
}

// IncConversion increments the conversions counter for a result label.
func (m *Metrics) IncConversion(result string) {
	if m == nil {
		return
	}
	m.ConversionsTotal.WithLabelValues(result).Inc()
}

// IncPackagesPublished increments the published packages counter.
func (m *Metrics) IncPackagesPublished() {
	if m == nil {
		return
	}
	m.PackagesPublished.Inc()
}

// IncStageFailure increments the failure counter for a stage label.
func (m *Metrics) IncStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// ObserveImportDuration records one import stage duration.
func (m *Metrics) ObserveImportDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ImportDuration.Observe(d.Seconds())
}
