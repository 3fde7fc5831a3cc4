// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chat"

// ActiveConnections tracks the number of live websocket sessions.
var ActiveConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Current number of established websocket sessions.",
	},
)

// MessagesRoutedTotal counts messages accepted by the router, by outcome.
// Label:
//   - outcome: "delivered" or a validation failure ("unknown_user", "empty_content")
var MessagesRoutedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_routed_total",
		Help:      "Total number of messages handled by the router, by outcome.",
	},
	[]string{"outcome"},
)

// DeliveriesTotal counts per-recipient deliveries during fan-out.
var DeliveriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Total number of message copies delivered to room members.",
	},
)

// DeliveryDropsTotal counts frames dropped because a recipient was slow or gone.
var DeliveryDropsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_drops_total",
		Help:      "Total number of frames dropped on full or closed client queues.",
	},
)

// ReactionsTotal counts reactions broadcast system-wide.
var ReactionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reactions_total",
		Help:      "Total number of reactions broadcast to all connected clients.",
	},
)

// PersistenceFailuresTotal counts failed fire-and-forget store writes.
var PersistenceFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Total number of message persistence attempts that failed.",
	},
)

// SinkDropsTotal counts notifications dropped because the processing sink was full.
var SinkDropsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_drops_total",
		Help:      "Total number of sink notifications dropped on a full queue.",
	},
)
