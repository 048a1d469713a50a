// Package metrics exposes the process's Prometheus collectors. Counters are
// incremented directly from the station worker and scheduler; SinkActive is
// a gauge set directly by the scheduler when it attaches a sink and by the
// sink registry when a broadcast drops sinks.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "stationkeeper"

var (
	SinkActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sink_active",
		Help:      "Number of currently attached recording sinks per station.",
	}, []string{"station"})

	BytesRelayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_relayed_total",
		Help:      "Total bytes received from a station's upstream and broadcast to its sinks.",
	}, []string{"station"})

	ReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "Total upstream reconnect attempts per station, labeled by cause.",
	}, []string{"station", "cause"})

	EventsScheduledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_scheduled_total",
		Help:      "Total programme occurrences pushed onto the scheduler's queue.",
	}, []string{"station", "programme"})

	PlaylistEmptyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playlist_empty_total",
		Help:      "Total playlist fetches that yielded zero URLs.",
	}, []string{"station"})
)

func init() {
	prometheus.MustRegister(
		SinkActive,
		BytesRelayedTotal,
		ReconnectsTotal,
		EventsScheduledTotal,
		PlaylistEmptyTotal,
	)
}
