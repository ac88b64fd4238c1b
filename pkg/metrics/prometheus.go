package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resultsMerged  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		resultsMerged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricehunter_results_merged_total",
				Help: "Total number of scrape results merged into the catalog",
			},
			[]string{"store"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricehunter_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricehunter_last_price",
				Help: "Last observed price for a query per store",
			},
			[]string{"query", "store"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricehunter_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pricehunter_active_sessions",
				Help: "Number of scrape sessions currently connecting or streaming",
			},
		),
	}
}

// RecordResultMerged records a scrape result merged into the catalog.
func (r *Recorder) RecordResultMerged(store string) {
	r.resultsMerged.WithLabelValues(store).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last observed price for a query/store pair.
func (r *Recorder) RecordLastPrice(query, store string, price float64) {
	r.lastPrice.WithLabelValues(query, store).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetActiveSessions sets the number of non-terminal sessions.
func (r *Recorder) SetActiveSessions(n int) {
	r.activeSessions.Set(float64(n))
}
