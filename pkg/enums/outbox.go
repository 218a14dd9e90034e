package enums

import "fmt"

// OutboxEventType names the domain events the settlement core emits.
type OutboxEventType string

const (
	EventPaymentConfirmed OutboxEventType = "payment.confirmed"
	EventPaymentFailed    OutboxEventType = "payment.failed"
	EventFundsReleased    OutboxEventType = "funds.released"
	EventPayoutRequested  OutboxEventType = "payout.requested"
	EventPayoutCompleted  OutboxEventType = "payout.completed"
	EventPayoutFailed     OutboxEventType = "payout.failed"
	EventRefundCompleted  OutboxEventType = "refund.completed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentConfirmed,
	EventPaymentFailed,
	EventFundsReleased,
	EventPayoutRequested,
	EventPayoutCompleted,
	EventPayoutFailed,
	EventRefundCompleted,
}

// IsValid reports whether the value is a known OutboxEventType.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateVendorOrder   OutboxAggregateType = "vendor_order"
	AggregatePayout        OutboxAggregateType = "payout"
	AggregateReturnRequest OutboxAggregateType = "return_request"
	AggregateWallet        OutboxAggregateType = "wallet"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	AggregateVendorOrder,
	AggregatePayout,
	AggregateReturnRequest,
	AggregateWallet,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (t OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
