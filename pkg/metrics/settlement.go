package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks money-movement outcomes across the settlement pipeline.
type SettlementMetrics struct {
	ordersReleased     prometheus.Counter
	releaseFailures    prometheus.Counter
	payoutsRequested   prometheus.Counter
	payoutsCompensated prometheus.Counter
	refundsProcessed   prometheus.Counter
	webhookEvents      *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement pipeline metrics.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	ordersReleased := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_orders_released_total",
		Help: "Vendor orders whose funds moved from pending to available.",
	})
	releaseFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_release_failures_total",
		Help: "Orders the release job failed to settle.",
	})
	payoutsRequested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_payouts_requested_total",
		Help: "Payout requests accepted and debited.",
	})
	payoutsCompensated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_payouts_compensated_total",
		Help: "Failed payouts whose debit was reversed with a compensating credit.",
	})
	refundsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_refunds_processed_total",
		Help: "Refunds debited against vendor wallets.",
	})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_webhook_events_total",
		Help: "Provider webhook events by type and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(ordersReleased, releaseFailures, payoutsRequested, payoutsCompensated, refundsProcessed, webhookEvents)
	return &SettlementMetrics{
		ordersReleased:     ordersReleased,
		releaseFailures:    releaseFailures,
		payoutsRequested:   payoutsRequested,
		payoutsCompensated: payoutsCompensated,
		refundsProcessed:   refundsProcessed,
		webhookEvents:      webhookEvents,
	}
}

// IncOrdersReleased counts a successful release of order funds.
func (m *SettlementMetrics) IncOrdersReleased() {
	if m == nil || m.ordersReleased == nil {
		return
	}
	m.ordersReleased.Inc()
}

// IncReleaseFailures counts an order the release job could not settle.
func (m *SettlementMetrics) IncReleaseFailures() {
	if m == nil || m.releaseFailures == nil {
		return
	}
	m.releaseFailures.Inc()
}

// IncPayoutsRequested counts an accepted payout request.
func (m *SettlementMetrics) IncPayoutsRequested() {
	if m == nil || m.payoutsRequested == nil {
		return
	}
	m.payoutsRequested.Inc()
}

// IncPayoutsCompensated counts a payout failure that was credited back.
func (m *SettlementMetrics) IncPayoutsCompensated() {
	if m == nil || m.payoutsCompensated == nil {
		return
	}
	m.payoutsCompensated.Inc()
}

// IncRefundsProcessed counts a refund debit applied to a vendor wallet.
func (m *SettlementMetrics) IncRefundsProcessed() {
	if m == nil || m.refundsProcessed == nil {
		return
	}
	m.refundsProcessed.Inc()
}

// IncWebhookEvent counts a provider webhook delivery by event type and outcome.
func (m *SettlementMetrics) IncWebhookEvent(event, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
