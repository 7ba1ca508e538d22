package application

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emiliorios/mpgateway/internal/domain/model"
)

// Metrics counts webhook dispatch outcomes by event kind. A nil *Metrics is
// valid and records nothing, so tests can skip registration.
type Metrics struct {
	dispatched *prometheus.CounterVec
}

// NewMetrics creates and registers the dispatch counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mpgateway",
			Name:      "webhook_events_total",
			Help:      "Webhook events processed, by event kind and terminal outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.dispatched)
	return m
}

// Observe records one terminal dispatch outcome.
func (m *Metrics) Observe(kind model.EventKind, outcome model.DispatchOutcome) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(string(kind), string(outcome)).Inc()
}
