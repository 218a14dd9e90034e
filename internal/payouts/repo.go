package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
)

// Repository is the persistence boundary for payout rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByProviderReference(ctx context.Context, reference string) (*models.Payout, error)
	// TransitionFromOpen updates the payout only while it is still pending or
	// processing. Returns the number of rows touched so callers can detect a
	// lost race against a concurrent terminal transition.
	TransitionFromOpen(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	Patch(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindStale(ctx context.Context, requestedBefore time.Time, limit int) ([]models.Payout, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByProviderReference(ctx context.Context, reference string) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Where("provider_reference = ?", reference).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) TransitionFromOpen(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status IN ?", id, []enums.PayoutStatus{
			enums.PayoutStatusPending,
			enums.PayoutStatusProcessing,
		}).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) Patch(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) FindStale(ctx context.Context, requestedBefore time.Time, limit int) ([]models.Payout, error) {
	var rows []models.Payout
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.PayoutStatus{
			enums.PayoutStatusPending,
			enums.PayoutStatusProcessing,
		}).
		Where("requested_at < ?", requestedBefore).
		Order("requested_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Payout, error) {
	query := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Payout
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
