package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// PaymentConfirmedEvent is emitted when a provider payment settles an order.
type PaymentConfirmedEvent struct {
	OrderID          uuid.UUID      `json:"order_id"`
	OrderNumber      string         `json:"order_number"`
	VendorStoreID    uuid.UUID      `json:"vendor_store_id"`
	CustomerID       uuid.UUID      `json:"customer_id"`
	TotalCents       int64          `json:"total_cents"`
	CommissionCents  int64          `json:"commission_cents"`
	Currency         enums.Currency `json:"currency"`
	PaymentReference string         `json:"payment_reference"`
}

// PaymentFailedEvent is emitted when a provider payment is declined.
type PaymentFailedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	VendorStoreID    uuid.UUID `json:"vendor_store_id"`
	PaymentReference string    `json:"payment_reference"`
	Reason           string    `json:"reason,omitempty"`
}

// FundsReleasedEvent is emitted when order funds move from pending to available.
type FundsReleasedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	VendorStoreID uuid.UUID `json:"vendor_store_id"`
	AmountCents   int64     `json:"amount_cents"`
	ReleasedAt    time.Time `json:"released_at"`
}

// PayoutStatusEvent covers requested, completed, and failed payout events.
type PayoutStatusEvent struct {
	PayoutID          uuid.UUID          `json:"payout_id"`
	StoreID           uuid.UUID          `json:"store_id"`
	AmountCents       int64              `json:"amount_cents"`
	FeeCents          int64              `json:"fee_cents"`
	Currency          enums.Currency     `json:"currency"`
	Status            enums.PayoutStatus `json:"status"`
	ProviderReference string             `json:"provider_reference,omitempty"`
	FailureReason     string             `json:"failure_reason,omitempty"`
}

// RefundCompletedEvent is emitted when a return is refunded to the customer.
type RefundCompletedEvent struct {
	ReturnID      uuid.UUID `json:"return_id"`
	OrderID       uuid.UUID `json:"order_id"`
	VendorStoreID uuid.UUID `json:"vendor_store_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	AmountCents   int64     `json:"amount_cents"`
}
