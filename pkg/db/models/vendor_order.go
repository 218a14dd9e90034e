package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// VendorOrder is the settlement core's view of an order. Checkout owns the
// full order; the core only reads it and patches status, payment_status and
// the provider payment reference.
type VendorOrder struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex:ux_vendor_orders_order_number"`
	VendorStoreID    uuid.UUID           `gorm:"column:vendor_store_id;type:uuid;not null;index"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	CustomerEmail    string              `gorm:"column:customer_email;not null;default:''"`
	CustomerPhone    string              `gorm:"column:customer_phone;not null;default:''"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'XOF'"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	CommissionCents  int64               `gorm:"column:commission_cents;not null;default:0"`
	PaymentReference *string             `gorm:"column:payment_reference;index"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
