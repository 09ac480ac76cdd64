package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the account lifecycle counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuthEvents   *prometheus.CounterVec
	MailFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskmanager_auth_events_total",
				Help: "Total number of account lifecycle events by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		MailFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskmanager_mail_failures_total",
				Help: "Total number of account emails that could not be dispatched",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.AuthEvents)
	reg.MustRegister(m.MailFailures)

	return m
}

// ObserveAuthEvent counts event as a success when err is nil.
func (m *Metrics) ObserveAuthEvent(event string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) MailFailed(kind string) {
	if m == nil {
		return
	}
	m.MailFailures.WithLabelValues(kind).Inc()
}
