package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters land in the default registry, which the monitoring server
// exposes over promhttp.
var (
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "rooms_active",
		Help:      "Number of live rooms.",
	})
	roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "rooms_created_total",
		Help:      "Rooms created since start.",
	})
	roomsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "rooms_destroyed_total",
		Help:      "Rooms destroyed since start, by cause.",
	}, []string{"reason"})
	peersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "peers_active",
		Help:      "Number of peers currently seated in rooms.",
	})
	matchesReady = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "matches_ready_total",
		Help:      "Times a room sealed with a full house.",
	})
	signalsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "signals_relayed_total",
		Help:      "Signaling payloads forwarded between peers.",
	})
	msgsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "messages_dropped_total",
		Help:      "Messages dropped instead of processed, by cause.",
	}, []string{"reason"})
	lobbySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rondo",
		Subsystem: "relay",
		Name:      "lobby_subscribers",
		Help:      "Connections subscribed to the lobby feed.",
	})
)

// Drop reasons for messages_dropped_total.
const (
	dropMalformed    = "malformed"
	dropUnexpected   = "unexpected"
	dropViolation    = "relay_violation"
	dropBackpressure = "backpressure"
)
