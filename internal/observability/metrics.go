package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the collaboration core.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	RoomParticipants  *prometheus.GaugeVec
	WSEvents          *prometheus.CounterVec
	StoreFallback     prometheus.Counter
	BroadcastFanout   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections.",
		}),
		RoomParticipants: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_participants",
			Help:      "Active participants per room.",
		}, []string{"room"}),
		WSEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_events_total",
			Help:      "WebSocket events by direction and type.",
		}, []string{"direction", "type"}),
		StoreFallback: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fallback_flips_total",
			Help:      "Times the persistence layer flipped to the in-memory fallback.",
		}),
		BroadcastFanout: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_fanout",
			Help:      "Connections reached per room broadcast.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
