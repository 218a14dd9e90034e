package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// ReturnRequest is a customer-initiated reversal of a paid or delivered
// order. The approval workflow lives outside the core; the refund engine
// only acts on approved requests whose goods were received back.
type ReturnRequest struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	VendorStoreID     uuid.UUID          `gorm:"column:vendor_store_id;type:uuid;not null;index"`
	CustomerID        uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	Items             json.RawMessage    `gorm:"column:items;type:jsonb"`
	Reason            string             `gorm:"column:reason;not null"`
	Status            enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	RefundAmountCents int64              `gorm:"column:refund_amount_cents;not null;default:0"`
	RefundReference   *string            `gorm:"column:refund_reference;index"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
