package fields

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for fields parsing.
type Metrics struct {
	parseTotal    *prometheus.CounterVec
	parseDuration *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton parse metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			parseTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avafields",
					Subsystem: "fields",
					Name:      "parse_total",
					Help:      "Total number of fields expressions parsed",
				},
				[]string{"mode", "result"},
			),
			parseDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avafields",
					Subsystem: "fields",
					Name:      "parse_duration_seconds",
					Help:      "Duration of fields expression parsing in seconds",
					Buckets: []float64{
						.00001, .00005, .0001, .0005,
						.001, .005, .01, .05,
					},
				},
				[]string{"mode"},
			),
		}
	})
	return metricsInstance
}

// MustRegister registers the collectors with registry. promauto registers on
// the default registry; the server exposes a custom one.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.parseTotal, m.parseDuration)
}

// Init pre-creates label combinations so series exist from startup.
func (m *Metrics) Init() {
	for _, mode := range []string{modeSchemaless, modeSchema} {
		for _, result := range []string{resultSuccess, resultSyntaxError, resultValidationError} {
			m.parseTotal.WithLabelValues(mode, result)
		}
		m.parseDuration.WithLabelValues(mode)
	}
}

// RecordParse records one parse outcome.
func (m *Metrics) RecordParse(mode, result string, seconds float64) {
	m.parseTotal.WithLabelValues(mode, result).Inc()
	m.parseDuration.WithLabelValues(mode).Observe(seconds)
}
