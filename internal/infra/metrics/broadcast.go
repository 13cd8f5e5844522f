package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		broadcastRunsTotal,
		broadcastDeliveriesTotal,
		broadcastRetriesTotal,
		broadcastDurationSeconds,
		broadcastHistoryFailuresTotal,
		broadcastSessionsTotal,
	)
}

var (
	broadcastRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_runs_total",
			Help: "Completed broadcasts, labeled by result.",
		},
		[]string{"result"}, // 'complete', 'partial', 'failed', 'empty'
	)

	broadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Per-recipient broadcast outcomes.",
		},
		[]string{"status", "kind"}, // status: delivered|failed, kind: send error kind or 'none'
	)

	broadcastRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_retries_total",
			Help: "Delivery attempts that were retried after a retryable failure.",
		},
	)

	broadcastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Wall time of a broadcast fan-out.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	broadcastHistoryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_history_persist_failures_total",
			Help: "Broadcast history records that could not be stored.",
		},
	)

	broadcastSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sessions_total",
			Help: "Broadcast session transitions.",
		},
		[]string{"event"}, // 'begin', 'draft', 'confirm', 'cancel', 'expired', 'reopen', 'swept'
	)
)

func IncBroadcastDelivery(status, kind string) {
	if kind == "" {
		kind = "none"
	}
	broadcastDeliveriesTotal.WithLabelValues(norm(status), norm(kind)).Inc()
}

func IncBroadcastRetry() { broadcastRetriesTotal.Inc() }

func ObserveBroadcast(result string, d time.Duration) {
	broadcastRunsTotal.WithLabelValues(norm(result)).Inc()
	broadcastDurationSeconds.Observe(d.Seconds())
}

func IncBroadcastHistoryFailure() { broadcastHistoryFailuresTotal.Inc() }

func IncBroadcastSession(event string) {
	broadcastSessionsTotal.WithLabelValues(norm(event)).Inc()
}

func AddBroadcastSessionsSwept(n int) {
	broadcastSessionsTotal.WithLabelValues("swept").Add(float64(n))
}
