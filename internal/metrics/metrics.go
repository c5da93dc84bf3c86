// Package metrics exposes ingestion and graph-building measurements to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

// Collector records service metrics. It implements domain.Recorder and
// scrutiny.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	// postsIngested counts ingested posts by kind and result (new, duplicate)
	postsIngested *prometheus.CounterVec

	// collectionSize tracks the size of each collection in the latest snapshot
	collectionSize *prometheus.GaugeVec

	// buildDuration tracks snapshot build latency
	buildDuration prometheus.Histogram

	// diagnostics counts engine diagnostics by code
	diagnostics *prometheus.CounterVec
}

// NewCollector registers the metrics with a fresh registry.
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.NewRegistry())
}

// NewCollectorWith registers the metrics with reg.
func NewCollectorWith(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		gatherer: reg,
		postsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrutiny_posts_ingested_total",
			Help: "Total posts received by kind and result",
		}, []string{"kind", "result"}),
		collectionSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scrutiny_snapshot_entities",
			Help: "Number of entities per collection in the latest snapshot",
		}, []string{"collection"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrutiny_snapshot_build_duration_seconds",
			Help:    "Snapshot build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrutiny_diagnostics_total",
			Help: "Total engine diagnostics by code",
		}, []string{"code"}),
	}
}

// RecordIngest counts one received post.
func (c *Collector) RecordIngest(kind scrutiny.Kind, inserted bool) {
	result := "duplicate"
	if inserted {
		result = "new"
	}
	c.postsIngested.WithLabelValues(kind.String(), result).Inc()
}

// RecordSnapshot publishes the collection sizes of a freshly built snapshot.
func (c *Collector) RecordSnapshot(counts scrutiny.Counts, took time.Duration) {
	c.buildDuration.Observe(took.Seconds())

	sizes := map[string]int{
		"products":      counts.Products,
		"metadata":      counts.Metadata,
		"bindings":      counts.Bindings,
		"updates":       counts.Updates,
		"confirmations": counts.Confirmations,
		"contestations": counts.Contestations,
		"unknown":       counts.Unknown,
		"orphans":       counts.Orphans,
	}
	for name, n := range sizes {
		c.collectionSize.WithLabelValues(name).Set(float64(n))
	}
}

// Observe counts an engine diagnostic. Aggregated diagnostics add their count.
func (c *Collector) Observe(d scrutiny.Diagnostic) {
	n := d.Count
	if n < 1 {
		n = 1
	}
	c.diagnostics.WithLabelValues(string(d.Code)).Add(float64(n))
}

// Handler serves the registered metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
