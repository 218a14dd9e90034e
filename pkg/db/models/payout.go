package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// Payout is a withdrawal request. The wallet's available balance is debited
// at creation time; a payout that never reaches completed gets a compensating
// credit restoring the gross amount.
type Payout struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID             uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index"`
	WalletID            uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null;index"`
	AmountCents         int64              `gorm:"column:amount_cents;not null"`
	FeeCents            int64              `gorm:"column:fee_cents;not null;default:0"`
	Currency            enums.Currency     `gorm:"column:currency;type:text;not null"`
	Status              enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Method              enums.PayoutMethod `gorm:"column:method;type:text;not null"`
	Details             json.RawMessage    `gorm:"column:details;type:jsonb"`
	ProviderReference   *string            `gorm:"column:provider_reference;index"`
	Requires2FA         bool               `gorm:"column:requires_2fa;not null;default:false"`
	Verified2FA         bool               `gorm:"column:verified_2fa;not null;default:false"`
	LedgerTransactionID *uuid.UUID         `gorm:"column:ledger_transaction_id;type:uuid"`
	FailureReason       *string            `gorm:"column:failure_reason"`
	RequestedAt         time.Time          `gorm:"column:requested_at;not null"`
	ProcessedAt         *time.Time         `gorm:"column:processed_at"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// PayoutDetails is the method-specific recipient payload stored on a payout.
// Account identifiers are persisted masked.
type PayoutDetails struct {
	PhoneNumber   string `json:"phone_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
}
