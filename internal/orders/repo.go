package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

// Repository reads and patches vendor orders on behalf of the settlement
// pipeline. Order creation and fulfillment belong to checkout; settlement
// only flips payment state and consumes delivery timestamps.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.VendorOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VendorOrder, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.VendorOrder, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.VendorOrder, error)
	FindEligibleForRelease(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.VendorOrder, error)
	Patch(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListByVendorStore(ctx context.Context, storeID uuid.UUID, limit int) ([]models.VendorOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.VendorOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VendorOrder, error) {
	var order models.VendorOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.VendorOrder, error) {
	var order models.VendorOrder
	if err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.VendorOrder, error) {
	var order models.VendorOrder
	if err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindEligibleForRelease returns paid, delivered orders whose holding window
// elapsed before the cutoff, oldest deliveries first. Orders that already
// have a release entry are filtered out so the scan never refills its batch
// with settled work.
func (r *repository) FindEligibleForRelease(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.VendorOrder, error) {
	var rows []models.VendorOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusDelivered).
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Where("delivered_at IS NOT NULL AND delivered_at < ?", deliveredBefore).
		Where("NOT EXISTS (SELECT 1 FROM ledger_transactions lt WHERE lt.order_id = vendor_orders.id AND lt.entry_kind = ?)",
			enums.LedgerEntryKindOrderRelease).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Patch(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.VendorOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListByVendorStore(ctx context.Context, storeID uuid.UUID, limit int) ([]models.VendorOrder, error) {
	var rows []models.VendorOrder
	err := r.db.WithContext(ctx).
		Where("vendor_store_id = ?", storeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
