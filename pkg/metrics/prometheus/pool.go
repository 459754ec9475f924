package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmagar/scout-mcp-sub004/pkg/metrics"
	"github.com/jmagar/scout-mcp-sub004/pkg/sshpool"
)

// poolMetrics is the Prometheus implementation of sshpool.Metrics.
type poolMetrics struct {
	dials        *prometheus.CounterVec
	dialDuration *prometheus.HistogramVec
	evictions    *prometheus.CounterVec
	pooled       prometheus.Gauge
}

// NewPoolMetrics creates a Prometheus-backed sshpool.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPoolMetrics() sshpool.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newPoolMetrics(metrics.GetRegistry())
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	return &poolMetrics{
		dials: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_pool_dials_total",
				Help: "SSH connect attempts by host and outcome",
			},
			[]string{"host", "status"}, // status: "success", "error"
		),
		dialDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "scout_pool_dial_duration_seconds",
				Help: "Time spent in TCP dial plus SSH handshake",
				Buckets: []float64{
					0.01, // LAN
					0.05,
					0.1,
					0.25,
					0.5,
					1,
					2.5,
					5,
					10, // default connect timeout
				},
			},
			[]string{"host"},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_pool_evictions_total",
				Help: "Sessions removed from the pool by reason",
			},
			[]string{"reason"},
		),
		pooled: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_pool_sessions",
				Help: "Sessions currently held by the pool",
			},
		),
	}
}

func (m *poolMetrics) ObserveDial(host string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dials.WithLabelValues(host, status).Inc()
	m.dialDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func (m *poolMetrics) ObserveEviction(reason string) {
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *poolMetrics) SetPooled(n int) {
	m.pooled.Set(float64(n))
}
