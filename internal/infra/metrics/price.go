package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(priceRequestsTotal, priceRequestLatency) }

var (
	priceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_api_requests_total",
			Help: "Requests made to the price API, labeled by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	priceRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_api_latency_seconds",
			Help:    "Price API call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func ObservePriceRequest(endpoint, outcome string, d time.Duration) {
	priceRequestsTotal.WithLabelValues(norm(endpoint), norm(outcome)).Inc()
	priceRequestLatency.WithLabelValues(norm(endpoint)).Observe(d.Seconds())
}
