// Package observability exposes the relay's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics counts subscribe-relay message processing.
type RelayMetrics struct {
	Processed prometheus.Counter
	Succeeded prometheus.Counter
	Failed    prometheus.Counter
	Delivered prometheus.Counter
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		Processed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_processed_total",
			Help: "Payloads received from the relay channels.",
		}),
		Succeeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_succeeded_total",
			Help: "Payloads decoded and dispatched to local delivery.",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_failed_total",
			Help: "Payloads dropped because they could not be decoded.",
		}),
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_local_deliveries_total",
			Help: "Successful sends to local connections.",
		}),
	}
}
