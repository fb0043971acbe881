// Package metrics instruments the aggregation core with Prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and records
// nothing, so tests can run without a registry.
type Metrics struct {
	fetchDuration *prometheus.HistogramVec
	fetchTotal    *prometheus.CounterVec
	cacheHits     prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unimon",
			Name:      "datasource_fetch_duration_seconds",
			Help:      "Duration of one datasource fetch within an aggregation call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"datasource", "operation"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unimon",
			Name:      "datasource_fetch_total",
			Help:      "Datasource fetch outcomes by status.",
		}, []string{"datasource", "operation", "status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimon",
			Name:      "aggregation_cache_hits_total",
			Help:      "Aggregation reads served from the result cache.",
		}),
	}
	reg.MustRegister(m.fetchDuration, m.fetchTotal, m.cacheHits)
	return m
}

// ObserveFetch records one datasource fetch outcome.
func (m *Metrics) ObserveFetch(datasource, operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(datasource, operation).Observe(elapsed.Seconds())
	m.fetchTotal.WithLabelValues(datasource, operation, status).Inc()
}

// ObserveCacheHit records one cache-served read.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
