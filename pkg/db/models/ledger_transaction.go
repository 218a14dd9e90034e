package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// LedgerTransaction is an immutable ledger entry. Once written with status
// completed it is never updated; corrections are new entries of opposite
// direction. BalanceBeforeCents/BalanceAfterCents snapshot the balance field
// named by BalanceField at write time.
//
// Idempotency is enforced at the storage layer, not by matching description
// text: (order_id, entry_kind) is unique for the one-shot order kinds
// (payment_credit, order_release, order_release_hold) and (return_id,
// entry_kind) is unique where return_id is present. See the ledger migration
// for the partial indexes.
type LedgerTransaction struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID           uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index"`
	OrderID            *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	ReturnID           *uuid.UUID              `gorm:"column:return_id;type:uuid"`
	Type               enums.LedgerEntryType   `gorm:"column:type;type:text;not null"`
	Direction          enums.LedgerDirection   `gorm:"column:direction;type:text;not null"`
	AmountCents        int64                   `gorm:"column:amount_cents;not null"`
	Currency           enums.Currency          `gorm:"column:currency;type:text;not null"`
	BalanceField       enums.BalanceField      `gorm:"column:balance_field;type:text;not null"`
	BalanceBeforeCents int64                   `gorm:"column:balance_before_cents;not null"`
	BalanceAfterCents  int64                   `gorm:"column:balance_after_cents;not null"`
	Status             enums.LedgerEntryStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	EntryKind          enums.LedgerEntryKind   `gorm:"column:entry_kind;type:text;not null"`
	ProviderReference  string                  `gorm:"column:provider_reference"`
	Description        string                  `gorm:"column:description;not null"`
	Metadata           json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	ProcessedAt        time.Time               `gorm:"column:processed_at"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
}
