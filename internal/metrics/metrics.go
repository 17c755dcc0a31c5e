package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	Outcomes  *prometheus.CounterVec
	Conflicts prometheus.Counter
	Writes    prometheus.Counter
	Failures  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "llbot_records_total",
			Help: "Records processed, by wiki and outcome",
		}, []string{"wiki", "outcome"}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "llbot_edit_conflicts_total",
			Help: "Edits rejected because the page changed after it was fetched",
		}),
		Writes: f.NewCounter(prometheus.CounterOpts{
			Name: "llbot_page_writes_total",
			Help: "Pages saved",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "llbot_record_failures_total",
			Help: "Records that failed for a reason other than an edit conflict",
		}),
	}
}

// ObserveOutcome counts one finished record.
func (m *Metrics) ObserveOutcome(wiki, outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(wiki, outcome).Inc()
}

// IncConflicts counts one edit conflict.
func (m *Metrics) IncConflicts() {
	if m == nil {
		return
	}
	m.Conflicts.Inc()
}

// IncWrites counts one saved page.
func (m *Metrics) IncWrites() {
	if m == nil {
		return
	}
	m.Writes.Inc()
}

// IncFailures counts one failed record.
func (m *Metrics) IncFailures() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
