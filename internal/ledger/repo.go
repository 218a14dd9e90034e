package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
)

// Repository manages persistence for wallets and ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWalletByStoreID(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error)
	FindWalletForUpdate(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error)
	FindWalletByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	UpdateWalletBalances(ctx context.Context, walletID uuid.UUID, balanceCents, pendingCents int64) error

	CreateTransaction(ctx context.Context, trx *models.LedgerTransaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.LedgerTransaction, error)
	ListAllByWallet(ctx context.Context, walletID uuid.UUID) ([]models.LedgerTransaction, error)
	HasOrderEntry(ctx context.Context, orderID uuid.UUID, kind enums.LedgerEntryKind) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWalletByStoreID(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// FindWalletForUpdate locks the wallet row for the duration of the enclosing
// transaction. SQLite has no FOR UPDATE; its single-writer model serializes
// the update anyway.
func (r *repository) FindWalletForUpdate(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var wallet models.Wallet
	if err := query.Where("store_id = ?", storeID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateWalletBalances(ctx context.Context, walletID uuid.UUID, balanceCents, pendingCents int64) error {
	return r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance_cents":         balanceCents,
			"pending_balance_cents": pendingCents,
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, trx *models.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(trx).Error
}

func (r *repository) ListByWallet(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.LedgerTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.LedgerTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAllByWallet(ctx context.Context, walletID uuid.UUID) ([]models.LedgerTransaction, error) {
	var rows []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasOrderEntry(ctx context.Context, orderID uuid.UUID, kind enums.LedgerEntryKind) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LedgerTransaction{}).
		Where("order_id = ? AND entry_kind = ?", orderID, kind).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	var trx models.LedgerTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trx).Error
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

// IsNotFound reports whether the error is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
