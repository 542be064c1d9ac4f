package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the realtime MetricsSink on a Prometheus registry.
type Recorder struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

// NewRecorder registers the chat metrics. countConns feeds the active
// connection gauge and is typically Registry.CountAll.
func NewRecorder(reg prometheus.Registerer, countConns func() int) *Recorder {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chat_active_connections",
		Help: "Number of live websocket connections.",
	}, func() float64 { return float64(countConns()) })

	return &Recorder{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Total inbound client events by kind.",
		}, []string{"event"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_event_duration_seconds",
			Help:    "Time spent handling one client event.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_event_errors_total",
			Help: "Total failed client events by error kind.",
		}, []string{"kind"}),
	}
}

func (r *Recorder) RecordEvent(kind string, elapsed time.Duration) {
	r.events.WithLabelValues(kind).Inc()
	r.latency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (r *Recorder) IncrementError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}
