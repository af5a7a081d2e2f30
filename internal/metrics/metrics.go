package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Metrics holds the domain counters exposed next to the HTTP metrics
type Metrics struct {
	Mutations          *prometheus.CounterVec
	ReminderSyncFailed prometheus.Counter
}

// New creates the counters and registers them with reg when reg is not nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaxtrack",
			Name:      "mutations_total",
			Help:      "Record mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		ReminderSyncFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaxtrack",
			Name:      "reminder_sync_failures_total",
			Help:      "Reminder writes that failed after a successful record write.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Mutations, m.ReminderSyncFailed)
	}
	return m
}

// Nop returns unregistered counters, for tests and tools
func Nop() *Metrics {
	return New(nil)
}

// Mutation counts one mutation attempt
func (m *Metrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, outcome).Inc()
}

// ReminderSyncFailure counts one reminder write that failed after its record write
func (m *Metrics) ReminderSyncFailure() {
	if m == nil {
		return
	}
	m.ReminderSyncFailed.Inc()
}
