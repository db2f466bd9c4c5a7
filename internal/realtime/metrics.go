package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskboard_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	subscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskboard_realtime_subscriptions_active",
		Help: "Number of active topic subscriptions across all connections",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_realtime_events_published_total",
		Help: "Total number of events published by type",
	}, []string{"type"})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskboard_realtime_events_delivered_total",
		Help: "Total number of events queued to a connection",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskboard_realtime_events_dropped_total",
		Help: "Total number of events dropped because a connection's buffer was full",
	})

	relayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_realtime_relay_messages_total",
		Help: "Total number of relay messages by direction and outcome",
	}, []string{"direction", "outcome"}) // direction: "out" or "in"

	inboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskboard_websocket_messages_total",
		Help: "Total number of inbound WebSocket messages by type",
	}, []string{"type"})
)

// RecordInbound counts one client message.
func RecordInbound(messageType string) {
	inboundMessages.WithLabelValues(messageType).Inc()
}
