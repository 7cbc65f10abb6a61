package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobby_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lobby_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Presence metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lobby_rooms_active",
			Help: "Rooms currently registered",
		},
	)

	UsersRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lobby_users_registered",
			Help: "Users currently in the directory",
		},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobby_transitions_total",
			Help: "Presence transitions applied",
		},
		[]string{"transition"}, // join, leave, kick, delete, disconnect, reconnect
	)

	// Transport metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lobby_ws_connections",
			Help: "Open websocket sessions",
		},
	)

	BroadcastDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobby_broadcast_delivered_total",
			Help: "Frames queued to peers by broadcasts",
		},
		[]string{"event"},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobby_broadcast_dropped_total",
			Help: "Frames a peer could not accept",
		},
		[]string{"event"},
	)
)
