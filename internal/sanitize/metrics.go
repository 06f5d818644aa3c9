package sanitize

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for sanitize operations.
type Metrics struct {
	fieldsTotal *prometheus.CounterVec
	stepsTotal  *prometheus.CounterVec
	duration    prometheus.Histogram
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton sanitize metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			fieldsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avsanitize",
					Subsystem: "sanitize",
					Name:      "fields_total",
					Help:      "Total number of fields processed by sanitize calls",
				},
				[]string{"result"},
			),
			stepsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avsanitize",
					Subsystem: "sanitize",
					Name:      "steps_total",
					Help:      "Total number of pipeline steps evaluated",
				},
				[]string{"result"},
			),
			duration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "avsanitize",
					Subsystem: "sanitize",
					Name:      "duration_seconds",
					Help:      "Duration of sanitize calls in seconds",
					Buckets: []float64{
						.00001, .00005, .0001, .0005,
						.001, .005, .01, .05,
					},
				},
			),
		}
	})
	return metricsInstance
}

// MustRegister registers all sanitize metric collectors with the given
// Prometheus registry. promauto registers with the default global
// registry; when the application serves /metrics from its own registry,
// calling MustRegister bridges the two.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.fieldsTotal,
		m.stepsTotal,
		m.duration,
	)
}

// Init pre-initializes the known label combinations with zero values so
// that metric lines appear immediately after startup. Idempotent.
func (m *Metrics) Init() {
	for _, result := range []string{"success", "absent", "error"} {
		m.fieldsTotal.WithLabelValues(result)
	}
	for _, result := range []string{"applied", "skipped"} {
		m.stepsTotal.WithLabelValues(result)
	}
}

// RecordField records the outcome of processing one field.
func (m *Metrics) RecordField(result string) {
	m.fieldsTotal.WithLabelValues(result).Inc()
}

// RecordStep records the outcome of evaluating one pipeline step.
func (m *Metrics) RecordStep(result string) {
	m.stepsTotal.WithLabelValues(result).Inc()
}

// ObserveDuration records the duration of one sanitize call.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}
