// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vibrate"

// Sync outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeFailed          = "failed"
	OutcomeBusy            = "busy"
	OutcomeUnauthenticated = "unauthenticated"
)

var (
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Sync attempts by outcome.",
	}, []string{"outcome"})

	RecordsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_synced_total",
		Help:      "Records acknowledged by the remote store and marked synced.",
	})

	RecordsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_rejected_total",
		Help:      "Pending records left unsynced by validation or a remote rejection.",
	})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Wall time of sync runs that reached the remote store.",
		Buckets:   prometheus.DefBuckets,
	})

	RemoteReadFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_read_fallbacks_total",
		Help:      "Reads served from local data because the remote fetch failed.",
	})

	RecordsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_saved_total",
		Help:      "Records written to the local store by sync status.",
	}, []string{"status"})

	IngestMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_messages_total",
		Help:      "MQTT data-entry messages by result.",
	}, []string{"result"})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_alerts_total",
		Help:      "Abnormal-increase alerts raised by analysis runs, by severity.",
	}, []string{"severity"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
