package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the server's operational counters, exposed on /metrics.
type Metrics struct {
	Connections     prometheus.Gauge
	ActiveRooms     prometheus.Gauge
	QueueDepth      prometheus.Gauge
	Events          *prometheus.CounterVec
	MatchesRecorded prometheus.Counter
	RecordFailures  prometheus.Counter
}

// NewMetrics registers the service metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yamon_connected_clients",
			Help: "Currently connected websocket clients.",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yamon_active_rooms",
			Help: "Live game rooms.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yamon_queue_depth",
			Help: "Players waiting in the quick-match queue.",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yamon_events_total",
			Help: "Inbound events processed, by event name.",
		}, []string{"event"}),
		MatchesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "yamon_matches_recorded_total",
			Help: "Completed matches written to storage.",
		}),
		RecordFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "yamon_match_record_failures_total",
			Help: "Match writes that failed; gameplay continues regardless.",
		}),
	}
}
