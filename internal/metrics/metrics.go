package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"sync"
)

var (
	MessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfm_messages_consumed_total",
			Help: "Total number of messages acknowledged and handed to the handler",
		},
		[]string{"exchange", "queue"},
	)

	MessagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfm_messages_published_total",
			Help: "Total number of messages published by producers",
		},
		[]string{"exchange", "status"},
	)

	MessageHandlingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfm_message_handling_duration_seconds",
			Help:    "Duration of message handler calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	ProducerConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sfm_producer_connections",
			Help: "Number of open producer connections",
		},
	)

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default Prometheus registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesConsumed,
			MessagesPublished,
			MessageHandlingDuration,
			ProducerConnections,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
