package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Billing holds the counters of the plan-transition subsystem. A nil
// *Billing is valid and records nothing.
type Billing struct {
	transitions     *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	slugRetries     prometheus.Counter
	downgradeDecide *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
}

// NewBilling registers the billing counters on reg.
func NewBilling(reg prometheus.Registerer) *Billing {
	f := promauto.With(reg)
	return &Billing{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdir_plan_transitions_total",
			Help: "Plan transition requests by outcome.",
		}, []string{"outcome"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdir_checkout_verifications_total",
			Help: "Checkout session verifications by result.",
		}, []string{"result"}),
		slugRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "bizdir_slug_retries_total",
			Help: "Listing creation attempts retried after a slug collision.",
		}),
		downgradeDecide: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdir_downgrade_decisions_total",
			Help: "Admin decisions on downgrade requests.",
		}, []string{"decision"}),
		webhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdir_billing_webhook_events_total",
			Help: "Gateway webhook deliveries by handling result.",
		}, []string{"result"}),
	}
}

func (m *Billing) Transition(outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(outcome).Inc()
}

func (m *Billing) Verification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Billing) SlugRetry() {
	if m == nil {
		return
	}
	m.slugRetries.Inc()
}

func (m *Billing) DowngradeDecision(decision string) {
	if m == nil {
		return
	}
	m.downgradeDecide.WithLabelValues(decision).Inc()
}

func (m *Billing) WebhookEvent(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}
