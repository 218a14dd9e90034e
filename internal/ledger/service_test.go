package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL UNIQUE,
  currency TEXT NOT NULL DEFAULT 'XOF',
  balance_cents INTEGER NOT NULL DEFAULT 0,
  pending_balance_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS ledger_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  order_id TEXT,
  return_id TEXT,
  type TEXT NOT NULL,
  direction TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  balance_field TEXT NOT NULL,
  balance_before_cents INTEGER NOT NULL,
  balance_after_cents INTEGER NOT NULL,
  status TEXT NOT NULL,
  entry_kind TEXT NOT NULL,
  provider_reference TEXT,
  description TEXT,
  metadata TEXT,
  processed_at DATETIME,
  created_at DATETIME
);`
	orderKindIdx := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_transactions_order_entry_kind
  ON ledger_transactions (order_id, entry_kind)
  WHERE order_id IS NOT NULL
    AND entry_kind IN ('payment_credit', 'order_release', 'order_release_hold');`
	returnKindIdx := `
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_transactions_return_entry_kind
  ON ledger_transactions (return_id, entry_kind)
  WHERE return_id IS NOT NULL;`

	require.NoError(t, conn.Exec(wallets).Error)
	require.NoError(t, conn.Exec(transactions).Error)
	require.NoError(t, conn.Exec(orderKindIdx).Error)
	require.NoError(t, conn.Exec(returnKindIdx).Error)
	return conn
}

func newLedgerService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := setupLedgerTestDB(t)
	svc, err := NewService(ServiceParams{
		DBClient: dbpkg.NewWithConn(conn),
		Repo:     NewRepository(conn),
		Now:      func() time.Time { return time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc, conn
}

func creditPending(t *testing.T, svc *Service, storeID uuid.UUID, orderID uuid.UUID, amount int64) *models.LedgerTransaction {
	t.Helper()
	trx, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      storeID,
		OrderID:      &orderID,
		Type:         enums.LedgerEntryTypeSale,
		Direction:    enums.LedgerDirectionCredit,
		AmountCents:  amount,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldPending,
		EntryKind:    enums.LedgerEntryKindPaymentCredit,
		Description:  "payment received",
	})
	require.NoError(t, err)
	return trx
}

func TestApplyEntryCreatesWalletAndSnapshots(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()

	trx := creditPending(t, svc, storeID, orderID, 150000)

	assert.Equal(t, int64(0), trx.BalanceBeforeCents)
	assert.Equal(t, int64(150000), trx.BalanceAfterCents)
	assert.Equal(t, enums.LedgerEntryStatusCompleted, trx.Status)

	var wallet models.Wallet
	require.NoError(t, conn.Where("store_id = ?", storeID).First(&wallet).Error)
	assert.Equal(t, int64(150000), wallet.PendingBalanceCents)
	assert.Equal(t, int64(0), wallet.BalanceCents)
}

func TestApplyEntryRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newLedgerService(t)
	storeID := uuid.New()

	for _, amount := range []int64{0, -500} {
		_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
			StoreID:      storeID,
			Type:         enums.LedgerEntryTypeCredit,
			Direction:    enums.LedgerDirectionCredit,
			AmountCents:  amount,
			Currency:     enums.CurrencyXOF,
			BalanceField: enums.BalanceFieldAvailable,
			EntryKind:    enums.LedgerEntryKindAdjustment,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestDebitInsufficientFundsRollsBack(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 100)

	_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      storeID,
		Type:         enums.LedgerEntryTypeRefund,
		Direction:    enums.LedgerDirectionDebit,
		AmountCents:  500,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldPending,
		EntryKind:    enums.LedgerEntryKindAdjustment,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	var count int64
	require.NoError(t, conn.Model(&models.LedgerTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "failed debit must not persist an entry")

	var wallet models.Wallet
	require.NoError(t, conn.Where("store_id = ?", storeID).First(&wallet).Error)
	assert.Equal(t, int64(100), wallet.PendingBalanceCents)
}

func TestDebitAgainstMissingWallet(t *testing.T) {
	svc, _ := newLedgerService(t)

	_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      uuid.New(),
		Type:         enums.LedgerEntryTypePayout,
		Direction:    enums.LedgerDirectionDebit,
		AmountCents:  1000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldAvailable,
		EntryKind:    enums.LedgerEntryKindPayoutRequest,
	})
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestOneShotKindIsStorageIdempotent(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      storeID,
		OrderID:      &orderID,
		Type:         enums.LedgerEntryTypeSale,
		Direction:    enums.LedgerDirectionCredit,
		AmountCents:  150000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldPending,
		EntryKind:    enums.LedgerEntryKindPaymentCredit,
		Description:  "payment received (redelivery)",
	})
	require.ErrorIs(t, err, ErrDuplicateEntry)

	var wallet models.Wallet
	require.NoError(t, conn.Where("store_id = ?", storeID).First(&wallet).Error)
	assert.Equal(t, int64(150000), wallet.PendingBalanceCents, "duplicate must not double-credit")
}

func TestRepeatableKindsAllowMultipleEntriesPerOrder(t *testing.T) {
	svc, _ := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	// Two partial refund debits against the same order must both succeed.
	for i := 0; i < 2; i++ {
		_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
			StoreID:      storeID,
			OrderID:      &orderID,
			Type:         enums.LedgerEntryTypeRefund,
			Direction:    enums.LedgerDirectionDebit,
			AmountCents:  10000,
			Currency:     enums.CurrencyXOF,
			BalanceField: enums.BalanceFieldPending,
			EntryKind:    enums.LedgerEntryKindAdjustment,
		})
		require.NoError(t, err)
	}
}

func TestApplyTransferMovesPendingToAvailable(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	client := dbpkg.NewWithConn(conn)
	var result *TransferResult
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		result, err = svc.ApplyTransferTx(context.Background(), tx, TransferInput{
			StoreID:     storeID,
			OrderID:     orderID,
			AmountCents: 150000,
			Currency:    enums.CurrencyXOF,
			Description: "funds released",
		})
		return err
	}))

	assert.Equal(t, int64(150000), result.MovedCents)
	assert.False(t, result.Clamped)
	require.NotNil(t, result.Debit)
	require.NotNil(t, result.Credit)
	assert.Equal(t, enums.BalanceFieldPending, result.Debit.BalanceField)
	assert.Equal(t, enums.BalanceFieldAvailable, result.Credit.BalanceField)

	var wallet models.Wallet
	require.NoError(t, conn.Where("store_id = ?", storeID).First(&wallet).Error)
	assert.Equal(t, int64(0), wallet.PendingBalanceCents)
	assert.Equal(t, int64(150000), wallet.BalanceCents)
}

func TestApplyTransferClampsToHeldFunds(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	// A refund during the holding window drains part of the pending balance.
	_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      storeID,
		OrderID:      &orderID,
		Type:         enums.LedgerEntryTypeRefund,
		Direction:    enums.LedgerDirectionDebit,
		AmountCents:  50000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldPending,
		EntryKind:    enums.LedgerEntryKindAdjustment,
	})
	require.NoError(t, err)

	client := dbpkg.NewWithConn(conn)
	var result *TransferResult
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var txErr error
		result, txErr = svc.ApplyTransferTx(context.Background(), tx, TransferInput{
			StoreID:     storeID,
			OrderID:     orderID,
			AmountCents: 150000,
			Currency:    enums.CurrencyXOF,
		})
		return txErr
	}))

	assert.Equal(t, int64(100000), result.MovedCents)
	assert.True(t, result.Clamped)
}

func TestApplyTransferZeroMoveStillRecordsRelease(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	// A full refund during the holding window drains the entire hold.
	_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      storeID,
		OrderID:      &orderID,
		Type:         enums.LedgerEntryTypeRefund,
		Direction:    enums.LedgerDirectionDebit,
		AmountCents:  150000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldPending,
		EntryKind:    enums.LedgerEntryKindAdjustment,
	})
	require.NoError(t, err)

	client := dbpkg.NewWithConn(conn)
	runTransfer := func() (*TransferResult, error) {
		var result *TransferResult
		err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
			var txErr error
			result, txErr = svc.ApplyTransferTx(context.Background(), tx, TransferInput{
				StoreID:     storeID,
				OrderID:     orderID,
				AmountCents: 150000,
				Currency:    enums.CurrencyXOF,
			})
			return txErr
		})
		return result, err
	}

	result, err := runTransfer()
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.MovedCents)
	assert.True(t, result.Clamped)
	assert.Nil(t, result.Debit)
	require.NotNil(t, result.Credit)
	assert.Equal(t, int64(0), result.Credit.AmountCents)

	var releases int64
	require.NoError(t, conn.Model(&models.LedgerTransaction{}).
		Where("order_id = ? AND entry_kind = ?", orderID, enums.LedgerEntryKindOrderRelease).
		Count(&releases).Error)
	assert.Equal(t, int64(1), releases, "zero release must still leave its row")

	_, err = runTransfer()
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestApplyTransferIsIdempotentPerOrder(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	client := dbpkg.NewWithConn(conn)
	runTransfer := func() error {
		return client.WithTx(context.Background(), func(tx *gorm.DB) error {
			_, err := svc.ApplyTransferTx(context.Background(), tx, TransferInput{
				StoreID:     storeID,
				OrderID:     orderID,
				AmountCents: 150000,
				Currency:    enums.CurrencyXOF,
			})
			return err
		})
	}

	require.NoError(t, runTransfer())
	require.ErrorIs(t, runTransfer(), ErrDuplicateEntry)

	var wallet models.Wallet
	require.NoError(t, conn.Where("store_id = ?", storeID).First(&wallet).Error)
	assert.Equal(t, int64(150000), wallet.BalanceCents, "second release must not double-pay")
}

func TestReplayMatchesStoredBalances(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	client := dbpkg.NewWithConn(conn)
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.ApplyTransferTx(context.Background(), tx, TransferInput{
			StoreID:     storeID,
			OrderID:     orderID,
			AmountCents: 150000,
			Currency:    enums.CurrencyXOF,
		})
		return err
	}))
	_, err := svc.ApplyEntry(context.Background(), ApplyEntryInput{
		StoreID:      storeID,
		Type:         enums.LedgerEntryTypePayout,
		Direction:    enums.LedgerDirectionDebit,
		AmountCents:  40000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldAvailable,
		EntryKind:    enums.LedgerEntryKindPayoutRequest,
	})
	require.NoError(t, err)

	result, err := svc.Replay(context.Background(), storeID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, int64(110000), result.ComputedAvailableCents)
	assert.Equal(t, int64(0), result.ComputedPendingCents)
	assert.Equal(t, 4, result.EntryCount)
}

func TestReplayDetectsTamperedBalance(t *testing.T) {
	svc, conn := newLedgerService(t)
	storeID := uuid.New()
	orderID := uuid.New()
	creditPending(t, svc, storeID, orderID, 150000)

	require.NoError(t, conn.Model(&models.Wallet{}).
		Where("store_id = ?", storeID).
		Update("pending_balance_cents", 999999).Error)

	result, err := svc.Replay(context.Background(), storeID)
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.Equal(t, int64(150000), result.ComputedPendingCents)
	assert.Equal(t, int64(999999), result.StoredPendingCents)
}

func TestListTransactionsPaginates(t *testing.T) {
	svc, _ := newLedgerService(t)
	storeID := uuid.New()

	for i := 0; i < 5; i++ {
		orderID := uuid.New()
		creditPending(t, svc, storeID, orderID, int64(1000*(i+1)))
	}

	page, next, err := svc.ListTransactions(context.Background(), storeID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page, 3)
	require.NotEmpty(t, next)

	rest, _, err := svc.ListTransactions(context.Background(), storeID, pagination.Params{Limit: 3, Cursor: next})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestGetWalletMissing(t *testing.T) {
	svc, _ := newLedgerService(t)
	_, err := svc.GetWallet(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrWalletNotFound)
}
