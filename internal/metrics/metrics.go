// Package metrics defines the Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the relay server.
type Metrics struct {
	// Connection and room lifecycle
	ConnectionsActive prometheus.Gauge
	RoomsActive       prometheus.Gauge
	JoinsTotal        prometheus.Counter
	LeavesTotal       prometheus.Counter

	// Relay traffic
	AudioBlocksRelayed prometheus.Counter
	AudioBytesRelayed  prometheus.Counter
	SpeakingEvents     prometheus.Counter

	// Failure accounting
	DroppedEvents *prometheus.CounterVec
	SendErrors    prometheus.Counter
}

// New creates and registers all metrics against the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomcast_connections_active",
			Help: "Number of live websocket connections",
		}),
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomcast_rooms_active",
			Help: "Number of rooms with at least one participant",
		}),
		JoinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_joins_total",
			Help: "Total number of room joins",
		}),
		LeavesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_leaves_total",
			Help: "Total number of room leaves, including disconnects",
		}),
		AudioBlocksRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_audio_blocks_relayed_total",
			Help: "Total number of audio blocks fanned out to peers",
		}),
		AudioBytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_audio_bytes_relayed_total",
			Help: "Total encoded audio payload bytes fanned out to peers",
		}),
		SpeakingEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_speaking_events_total",
			Help: "Total number of speaking-state updates broadcast",
		}),
		DroppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcast_dropped_events_total",
			Help: "Events dropped by reason (unbound sender, stale identity)",
		}, []string{"reason"}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomcast_send_errors_total",
			Help: "Failed writes during fan-out",
		}),
	}
}
