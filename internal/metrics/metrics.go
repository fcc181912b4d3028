package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wowserver",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Current number of websocket connections.",
		},
	)

	sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wowserver",
			Subsystem: "ws",
			Name:      "sessions",
			Help:      "Current number of logged-in connections.",
		},
	)

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wowserver",
			Subsystem: "ops",
			Name:      "requests_total",
			Help:      "Operations handled, by op and result code.",
		},
		[]string{"op", "code"},
	)

	duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wowserver",
			Subsystem: "ops",
			Name:      "duration_seconds",
			Help:      "Duration of operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"op"},
	)

	throttled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wowserver",
			Subsystem: "ops",
			Name:      "login_throttled_total",
			Help:      "Login attempts rejected by the per-peer limiter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		connections,
		sessions,
		requests,
		duration,
		throttled,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordOp counts one finished operation. code is "ok" for successes.
func RecordOp(op, code string, d time.Duration) {
	requests.WithLabelValues(op, code).Inc()
	duration.WithLabelValues(op).Observe(d.Seconds())
}

func SetConnections(n int) { connections.Set(float64(n)) }
func SetSessions(n int)    { sessions.Set(float64(n)) }
func LoginThrottled()      { throttled.Inc() }
