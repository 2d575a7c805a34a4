package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics counts the money-moving outcomes of the order engine.
type EngineMetrics struct {
	checkouts   *prometheus.CounterVec
	payments    *prometheus.CounterVec
	refunds     *prometheus.CounterVec
	payouts     *prometheus.CounterVec
	payoutMinor *prometheus.CounterVec
}

// NewEngineMetrics registers the engine counters on reg. A nil registerer yields a no-op recorder.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Checkout submissions by result (created, duplicate, in_flight, charge_failed, charge_unknown).",
	}, []string{"result"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Payment reconciliation outcomes by source and resulting status.",
	}, []string{"source", "status"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund attempts by gateway outcome.",
	}, []string{"status"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "Payout requests by resulting status.",
	}, []string{"status"})
	payoutMinor := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_amount_minor_total",
		Help: "Sum of completed payout amounts in minor units.",
	}, []string{"currency"})
	reg.MustRegister(checkouts, payments, refunds, payouts, payoutMinor)
	return &EngineMetrics{
		checkouts:   checkouts,
		payments:    payments,
		refunds:     refunds,
		payouts:     payouts,
		payoutMinor: payoutMinor,
	}
}

func (m *EngineMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *EngineMetrics) IncPaymentTransition(source, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(source), normalizeLabel(status)).Inc()
}

func (m *EngineMetrics) IncRefund(status string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObservePayout counts a payout outcome; completed payouts also add their amount.
func (m *EngineMetrics) ObservePayout(status, currency string, amount int64) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(status)).Inc()
	if status == "completed" && amount > 0 {
		m.payoutMinor.WithLabelValues(normalizeLabel(currency)).Add(float64(amount))
	}
}
