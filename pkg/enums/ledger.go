package enums

import "fmt"

// LedgerEntryType classifies what kind of money movement a ledger
// transaction records.
type LedgerEntryType string

const (
	LedgerEntryTypeSale         LedgerEntryType = "sale"
	LedgerEntryTypeRefund       LedgerEntryType = "refund"
	LedgerEntryTypePayout       LedgerEntryType = "payout"
	LedgerEntryTypeFee          LedgerEntryType = "fee"
	LedgerEntryTypeCredit       LedgerEntryType = "credit"
	LedgerEntryTypeTransfer     LedgerEntryType = "transfer"
	LedgerEntryTypeAdPayment    LedgerEntryType = "ad_payment"
	LedgerEntryTypeSubscription LedgerEntryType = "subscription"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeSale,
	LedgerEntryTypeRefund,
	LedgerEntryTypePayout,
	LedgerEntryTypeFee,
	LedgerEntryTypeCredit,
	LedgerEntryTypeTransfer,
	LedgerEntryTypeAdPayment,
	LedgerEntryTypeSubscription,
}

// IsValid reports whether the value matches the canonical entry type enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}

// LedgerDirection distinguishes credits from debits.
type LedgerDirection string

const (
	LedgerDirectionCredit LedgerDirection = "credit"
	LedgerDirectionDebit  LedgerDirection = "debit"
)

// IsValid reports whether the direction is recognized.
func (d LedgerDirection) IsValid() bool {
	return d == LedgerDirectionCredit || d == LedgerDirectionDebit
}

// LedgerEntryStatus tracks the lifecycle of a ledger transaction.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending   LedgerEntryStatus = "pending"
	LedgerEntryStatusCompleted LedgerEntryStatus = "completed"
	LedgerEntryStatusFailed    LedgerEntryStatus = "failed"
	LedgerEntryStatusReversed  LedgerEntryStatus = "reversed"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusCompleted,
	LedgerEntryStatusFailed,
	LedgerEntryStatusReversed,
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// BalanceField selects which of the wallet's two balances an entry moves.
type BalanceField string

const (
	BalanceFieldAvailable BalanceField = "available"
	BalanceFieldPending   BalanceField = "pending"
)

// IsValid reports whether the balance field is recognized.
func (f BalanceField) IsValid() bool {
	return f == BalanceFieldAvailable || f == BalanceFieldPending
}

// LedgerEntryKind is the idempotency key component for order-linked
// entries; (order_id, entry_kind) is unique at the storage layer.
type LedgerEntryKind string

const (
	LedgerEntryKindPaymentCredit    LedgerEntryKind = "payment_credit"
	LedgerEntryKindOrderRelease     LedgerEntryKind = "order_release"
	LedgerEntryKindOrderReleaseHold LedgerEntryKind = "order_release_hold"
	LedgerEntryKindPayoutRequest    LedgerEntryKind = "payout_request"
	LedgerEntryKindPayoutReversal   LedgerEntryKind = "payout_reversal"
	LedgerEntryKindRefundDebit      LedgerEntryKind = "refund_debit"
	LedgerEntryKindAdjustment       LedgerEntryKind = "adjustment"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindPaymentCredit,
	LedgerEntryKindOrderRelease,
	LedgerEntryKindOrderReleaseHold,
	LedgerEntryKindPayoutRequest,
	LedgerEntryKindPayoutReversal,
	LedgerEntryKindRefundDebit,
	LedgerEntryKindAdjustment,
}

// IsValid reports whether the value is a known LedgerEntryKind.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}
