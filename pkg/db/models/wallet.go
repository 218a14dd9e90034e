package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// Wallet holds the per-store balance pair. Both balances are integers in the
// smallest currency unit and are never negative; every change to either field
// is written in the same transaction as the LedgerTransaction justifying it.
type Wallet struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID             uuid.UUID      `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_wallets_store_id"`
	Currency            enums.Currency `gorm:"column:currency;type:text;not null;default:'XOF'"`
	BalanceCents        int64          `gorm:"column:balance_cents;not null;default:0"`
	PendingBalanceCents int64          `gorm:"column:pending_balance_cents;not null;default:0"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
