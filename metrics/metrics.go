// Package metrics defines the Prometheus collectors for mailtrack.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtrack_events_received_total",
			Help: "Total number of mail lifecycle notifications received",
		},
		[]string{"type"},
	)

	EventsMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_events_malformed_total",
			Help: "Total number of notifications dropped as malformed",
		},
	)

	EventProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailtrack_event_processing_duration_seconds",
			Help:    "Duration of lifecycle event processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	CredentialCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_credential_cache_hits_total",
			Help: "Total number of credential vends served from the cache",
		},
	)

	CredentialCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_credential_cache_misses_total",
			Help: "Total number of credential vends that ran the assumption chain",
		},
	)

	SendsBlockedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_sends_blocked_total",
			Help: "Total number of sends rejected by the suppression list",
		},
	)
)

// Register registers all mailtrack collectors with the default registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		EventsReceivedTotal,
		EventsMalformedTotal,
		EventProcessingDuration,
		CredentialCacheHitsTotal,
		CredentialCacheMissesTotal,
		SendsBlockedTotal,
	)
}
