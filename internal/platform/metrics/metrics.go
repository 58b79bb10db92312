package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	AssessmentsCreated prometheus.Counter
	EntitiesEvaluated  *prometheus.CounterVec
	EventsCreated      *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
	TickDuration       prometheus.Histogram
}

// New creates and registers all collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AssessmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "filingwatch_assessments_created_total",
			Help: "Assessment snapshots stored",
		}),
		EntitiesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "filingwatch_entities_evaluated_total",
			Help: "Entities processed by the compliance tick, by outcome",
		}, []string{"outcome"}),
		EventsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "filingwatch_notification_events_created_total",
			Help: "Notification events inserted, by event type",
		}, []string{"type"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "filingwatch_deliveries_total",
			Help: "Notification delivery attempts, by outcome",
		}, []string{"outcome"}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "filingwatch_tick_duration_seconds",
			Help:    "Wall time of one evaluate-all run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncAssessmentsCreated() {
	if m == nil {
		return
	}
	m.AssessmentsCreated.Inc()
}

func (m *Metrics) IncEntityOutcome(outcome string) {
	if m == nil {
		return
	}
	m.EntitiesEvaluated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncEventCreated(eventType string) {
	if m == nil {
		return
	}
	m.EventsCreated.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncDelivery(outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(seconds)
}
