package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveAuthEvent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveAuthEvent("register", nil)
	m.ObserveAuthEvent("register", nil)
	m.ObserveAuthEvent("register", errors.New("conflict"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuthEvents.WithLabelValues("register", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthEvents.WithLabelValues("register", OutcomeFailure)))
}

func TestMetrics_MailFailed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.MailFailed("email_verification")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.MailFailures.WithLabelValues("email_verification")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAuthEvent("login", nil)
		m.MailFailed("forgot_password")
	})
}
