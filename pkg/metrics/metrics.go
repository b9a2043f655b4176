// Package metrics holds the prometheus instrumentation for the refresh pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics for the traffic refresh pipeline
type Metrics struct {
	RefreshCycles   prometheus.Counter
	RefreshFailures *prometheus.CounterVec
	ParseErrors     prometheus.Counter
	FetchDuration   prometheus.Histogram
	CycleDuration   prometheus.Histogram
	OnlineEntities  *prometheus.GaugeVec
}

// New creates new prometheus metrics registered against the default registry
func New(namespace string) *Metrics {
	return &Metrics{
		RefreshCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "The total number of completed refresh cycles",
		}),
		RefreshFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "The total number of failed refresh cycles by phase",
		}, []string{"phase"}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "The total number of unparseable status-file lines",
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time taken to fetch a status-file snapshot",
			Buckets:   prometheus.DefBuckets,
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time taken to run a full refresh cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		OnlineEntities: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_entities",
			Help:      "Number of online entities in the latest snapshot by kind",
		}, []string{"kind"}),
	}
}
