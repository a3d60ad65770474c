package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guild_ws_connections_active",
			Help: "Authenticated websocket sessions currently open",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guild_ws_auth_failures_total",
			Help: "Rejected websocket handshakes",
		},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guild_ws_events_total",
			Help: "Inbound events by type and outcome",
		},
		[]string{"event", "outcome"}, // outcome is "ok" or an error kind
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guild_ws_event_duration_seconds",
			Help:    "Inbound event handling duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"event"},
	)

	BroadcastDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guild_ws_broadcast_deliveries_total",
			Help: "Outbound frames queued to sessions by room broadcasts",
		},
	)

	DroppedSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guild_ws_dropped_sessions_total",
			Help: "Sessions closed because their outbound queue was full",
		},
	)
)
