package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBillingCounters(t *testing.T) {
	m := NewBilling(prometheus.NewRegistry())

	m.Transition("checkout")
	m.Transition("checkout")
	m.Verification("applied")
	m.SlugRetry()
	m.DowngradeDecision("approve")
	m.WebhookEvent("duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("checkout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slugRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.downgradeDecide.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("duplicate")))
}

func TestNilBillingIsNoop(t *testing.T) {
	var m *Billing
	assert.NotPanics(t, func() {
		m.Transition("x")
		m.Verification("x")
		m.SlugRetry()
		m.DowngradeDecision("x")
		m.WebhookEvent("x")
	})
}
