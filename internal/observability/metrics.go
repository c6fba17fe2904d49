// Package observability holds the service-wide prometheus instruments.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	ingestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workout_log",
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Number of unique ingestion requests persisted, labeled by terminal status.",
	}, []string{"status"})

	duplicateCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workout_log",
		Subsystem: "ingest",
		Name:      "duplicate_requests_total",
		Help:      "Number of submissions short-circuited by the idempotency key.",
	})

	correctionCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workout_log",
		Subsystem: "correction",
		Name:      "applied_total",
		Help:      "Number of corrections applied.",
	})

	cascadeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "workout_log",
		Subsystem: "correction",
		Name:      "sessions_updated",
		Help:      "Sessions rewritten per correction, including the cascade.",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})
)

func init() {
	prometheus.MustRegister(ingestCounter, duplicateCounter, correctionCounter, cascadeHistogram)
}

// RecordIngest counts one persisted ingestion by status.
func RecordIngest(status string) {
	ingestCounter.WithLabelValues(status).Inc()
}

// RecordDuplicateIngest counts one idempotent replay.
func RecordDuplicateIngest() {
	duplicateCounter.Inc()
}

// RecordCorrection counts one applied correction and the size of its cascade.
func RecordCorrection(updatedSessions int) {
	correctionCounter.Inc()
	cascadeHistogram.Observe(float64(updatedSessions))
}
