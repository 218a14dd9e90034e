package provider

import (
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// Status is the transaction state reported by the provider.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSent        Status = "sent"
	StatusApproved    Status = "approved"
	StatusTransferred Status = "transferred"
	StatusDeclined    Status = "declined"
	StatusFailed      Status = "failed"
	StatusCanceled    Status = "canceled"
)

// Outcome collapses provider statuses into the three states the settlement
// pipeline acts on.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

func (s Status) String() string {
	return string(s)
}

// Outcome maps the provider status to a settlement outcome. Unknown statuses
// stay pending so a newer provider state never flips money by accident.
func (s Status) Outcome() Outcome {
	switch s {
	case StatusApproved, StatusTransferred:
		return OutcomeSucceeded
	case StatusDeclined, StatusFailed, StatusCanceled:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// Transaction is the provider's view of a payment or payout.
type Transaction struct {
	Reference   string         `json:"reference"`
	Status      Status         `json:"status"`
	Amount      int64          `json:"amount"`
	Currency    enums.Currency `json:"currency"`
	Description string         `json:"description,omitempty"`
	FailureCode string         `json:"failure_code,omitempty"`
	Mode        string         `json:"mode,omitempty"`
}

// PayoutCreateParams describes a disbursement request to the provider.
type PayoutCreateParams struct {
	Reference      string
	AmountCents    int64
	Currency       enums.Currency
	Method         enums.PayoutMethod
	PhoneNumber    string
	BankName       string
	AccountNumber  string
	AccountName    string
	IdempotencyKey string
}

// PayoutResult is the provider acknowledgement of a disbursement request.
type PayoutResult struct {
	ProviderReference string
	Status            Status
}

// PaymentCreateParams describes a customer collection to initialize with the
// provider.
type PaymentCreateParams struct {
	Reference      string
	AmountCents    int64
	Currency       enums.Currency
	Description    string
	CallbackURL    string
	IdempotencyKey string
}

// PaymentSession is the provider acknowledgement of an initialized payment:
// the hosted checkout URL the customer completes and the reference to
// reconcile against.
type PaymentSession struct {
	ProviderReference string
	CheckoutURL       string
	Status            Status
}
