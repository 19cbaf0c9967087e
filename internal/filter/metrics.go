package filter

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Field decisions.
const (
	decisionWritten     = "written"
	decisionOmitted     = "omitted"
	decisionTransformed = "transformed"
)

// Metrics contains Prometheus metrics for filtered encoding.
type Metrics struct {
	fieldsTotal *prometheus.CounterVec
	encodeTotal *prometheus.CounterVec

	written     prometheus.Counter
	omitted     prometheus.Counter
	transformed prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton filter metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		m := &Metrics{
			fieldsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avafields",
					Subsystem: "filter",
					Name:      "fields_total",
					Help:      "Total number of object members by filter decision",
				},
				[]string{"decision"},
			),
			encodeTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avafields",
					Subsystem: "filter",
					Name:      "encode_total",
					Help:      "Total number of filtered encodings",
				},
				[]string{"result"},
			),
		}
		m.written = m.fieldsTotal.WithLabelValues(decisionWritten)
		m.omitted = m.fieldsTotal.WithLabelValues(decisionOmitted)
		m.transformed = m.fieldsTotal.WithLabelValues(decisionTransformed)
		metricsInstance = m
	})
	return metricsInstance
}

// MustRegister registers the collectors with registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(m.fieldsTotal, m.encodeTotal)
}

// Init pre-creates label combinations so series exist from startup.
func (m *Metrics) Init() {
	m.encodeTotal.WithLabelValues("success")
	m.encodeTotal.WithLabelValues("error")
}

func (m *Metrics) recordDecision(decision string) {
	if m == nil || m.fieldsTotal == nil {
		return
	}
	switch decision {
	case decisionWritten:
		m.written.Inc()
	case decisionOmitted:
		m.omitted.Inc()
	case decisionTransformed:
		m.transformed.Inc()
	}
}

func (m *Metrics) recordEncode(err error) {
	if m == nil || m.encodeTotal == nil {
		return
	}
	if err != nil {
		m.encodeTotal.WithLabelValues("error").Inc()
		return
	}
	m.encodeTotal.WithLabelValues("success").Inc()
}
