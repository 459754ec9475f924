package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmagar/scout-mcp-sub004/pkg/metrics"
	"github.com/jmagar/scout-mcp-sub004/pkg/transfer"
)

// transferMetrics is the Prometheus implementation of transfer.Metrics.
type transferMetrics struct {
	transfers *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewTransferMetrics creates a Prometheus-backed transfer.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewTransferMetrics() transfer.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newTransferMetrics(metrics.GetRegistry())
}

func newTransferMetrics(reg prometheus.Registerer) *transferMetrics {
	return &transferMetrics{
		transfers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_transfers_total",
				Help: "File transfers by strategy and outcome",
			},
			[]string{"strategy", "status"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_transfer_bytes_total",
				Help: "Bytes delivered by successful transfers",
			},
			[]string{"strategy"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scout_transfer_duration_seconds",
				Help:    "Wall time of a transfer including both relay legs",
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 8), // 50ms .. ~14min
			},
			[]string{"strategy"},
		),
	}
}

func (m *transferMetrics) ObserveTransfer(strategy string, ok bool, bytes int64, duration time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.transfers.WithLabelValues(strategy, status).Inc()
	if ok {
		m.bytes.WithLabelValues(strategy).Add(float64(bytes))
	}
	m.duration.WithLabelValues(strategy).Observe(duration.Seconds())
}
