package cron

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

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/orders"
	dbpkg "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox"
)

func setupReleaseTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL UNIQUE,
  currency TEXT NOT NULL DEFAULT 'XOF',
  balance_cents INTEGER NOT NULL DEFAULT 0,
  pending_balance_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
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
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_transactions_order_entry_kind
  ON ledger_transactions (order_id, entry_kind)
  WHERE order_id IS NOT NULL
    AND entry_kind IN ('payment_credit', 'order_release', 'order_release_hold');`,
		`CREATE TABLE IF NOT EXISTS vendor_orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  vendor_store_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  customer_email TEXT NOT NULL DEFAULT '',
  customer_phone TEXT NOT NULL DEFAULT '',
  currency TEXT NOT NULL DEFAULT 'XOF',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL,
  commission_cents INTEGER NOT NULL DEFAULT 0,
  payment_reference TEXT,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_outbox_events_aggregate_event
  ON outbox_events (aggregate_type, aggregate_id, event_type);`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type releaseFixture struct {
	job    *releaseJob
	ledger *ledger.Service
	conn   *gorm.DB
	now    time.Time
}

func newReleaseFixture(t *testing.T) *releaseFixture {
	t.Helper()
	conn := setupReleaseTestDB(t)
	client := dbpkg.NewWithConn(conn)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DBClient: client,
		Repo:     ledger.NewRepository(conn),
	})
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "release-test"})
	jobIface, err := NewReleaseJob(ReleaseJobParams{
		Logger:        logg,
		DB:            client,
		Orders:        orders.NewRepository(conn),
		Ledger:        ledgerSvc,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logg),
		HoldingWindow: 48 * time.Hour,
		BatchSize:     100,
	})
	require.NoError(t, err)

	job, ok := jobIface.(*releaseJob)
	require.True(t, ok)
	now := time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }
	return &releaseFixture{job: job, ledger: ledgerSvc, conn: conn, now: now}
}

// seedSettledOrder creates a delivered, paid order whose net proceeds sit in
// the vendor's pending balance.
func (f *releaseFixture) seedSettledOrder(t *testing.T, totalCents, commissionCents int64, deliveredAgo time.Duration) *models.VendorOrder {
	t.Helper()
	storeID := uuid.New()
	deliveredAt := f.now.Add(-deliveredAgo)
	order := &models.VendorOrder{
		ID:              uuid.New(),
		OrderNumber:     "PXM-" + uuid.NewString()[:8],
		VendorStoreID:   storeID,
		CustomerID:      uuid.New(),
		Currency:        enums.CurrencyXOF,
		Status:          enums.OrderStatusDelivered,
		PaymentStatus:   enums.PaymentStatusPaid,
		TotalCents:      totalCents,
		CommissionCents: commissionCents,
		DeliveredAt:     &deliveredAt,
	}
	require.NoError(t, f.conn.Create(order).Error)

	net := totalCents - commissionCents
	if net > 0 {
		orderID := order.ID
		_, err := f.ledger.ApplyEntry(context.Background(), ledger.ApplyEntryInput{
			StoreID:      storeID,
			OrderID:      &orderID,
			Type:         enums.LedgerEntryTypeSale,
			Direction:    enums.LedgerDirectionCredit,
			AmountCents:  net,
			Currency:     enums.CurrencyXOF,
			BalanceField: enums.BalanceFieldPending,
			EntryKind:    enums.LedgerEntryKindPaymentCredit,
			Description:  "test payment credit",
		})
		require.NoError(t, err)
	}
	return order
}

func TestReleaseJobMovesMaturedFunds(t *testing.T) {
	f := newReleaseFixture(t)
	order := f.seedSettledOrder(t, 150000, 15000, 72*time.Hour)

	require.NoError(t, f.job.Run(context.Background()))

	wallet, err := f.ledger.GetWallet(context.Background(), order.VendorStoreID)
	require.NoError(t, err)
	assert.Equal(t, int64(135000), wallet.BalanceCents)
	assert.Equal(t, int64(0), wallet.PendingBalanceCents)

	var events int64
	require.NoError(t, f.conn.Table("outbox_events").
		Where("event_type = ?", enums.EventFundsReleased).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestReleaseJobRunTwiceNeverDoubleReleases(t *testing.T) {
	f := newReleaseFixture(t)
	order := f.seedSettledOrder(t, 150000, 15000, 72*time.Hour)

	require.NoError(t, f.job.Run(context.Background()))
	require.NoError(t, f.job.Run(context.Background()))

	wallet, err := f.ledger.GetWallet(context.Background(), order.VendorStoreID)
	require.NoError(t, err)
	assert.Equal(t, int64(135000), wallet.BalanceCents, "second sweep must not release again")

	var releases int64
	require.NoError(t, f.conn.Model(&models.LedgerTransaction{}).
		Where("entry_kind = ?", enums.LedgerEntryKindOrderRelease).
		Count(&releases).Error)
	assert.Equal(t, int64(1), releases)
}

func TestReleaseJobSkipsOrdersInsideHoldingWindow(t *testing.T) {
	f := newReleaseFixture(t)
	order := f.seedSettledOrder(t, 150000, 15000, 12*time.Hour)

	require.NoError(t, f.job.Run(context.Background()))

	wallet, err := f.ledger.GetWallet(context.Background(), order.VendorStoreID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.BalanceCents)
	assert.Equal(t, int64(135000), wallet.PendingBalanceCents, "young orders stay held")
}

func TestReleaseJobClampsAfterPartialRefund(t *testing.T) {
	f := newReleaseFixture(t)
	order := f.seedSettledOrder(t, 150000, 0, 72*time.Hour)

	// A refund during the holding window shrank the held funds.
	_, err := f.ledger.ApplyEntry(context.Background(), ledger.ApplyEntryInput{
		StoreID:      order.VendorStoreID,
		Type:         enums.LedgerEntryTypeRefund,
		Direction:    enums.LedgerDirectionDebit,
		AmountCents:  50000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldPending,
		EntryKind:    enums.LedgerEntryKindAdjustment,
		Description:  "partial refund during hold",
	})
	require.NoError(t, err)

	require.NoError(t, f.job.Run(context.Background()))

	wallet, err := f.ledger.GetWallet(context.Background(), order.VendorStoreID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), wallet.BalanceCents, "release moves only what is still held")
	assert.Equal(t, int64(0), wallet.PendingBalanceCents)
}

func TestReleaseJobSkipsMissingWalletAndContinues(t *testing.T) {
	f := newReleaseFixture(t)

	// An order whose store never got a wallet.
	deliveredAt := f.now.Add(-72 * time.Hour)
	orphan := &models.VendorOrder{
		ID:            uuid.New(),
		OrderNumber:   "PXM-" + uuid.NewString()[:8],
		VendorStoreID: uuid.New(),
		CustomerID:    uuid.New(),
		Currency:      enums.CurrencyXOF,
		Status:        enums.OrderStatusDelivered,
		PaymentStatus: enums.PaymentStatusPaid,
		TotalCents:    90000,
		DeliveredAt:   &deliveredAt,
	}
	require.NoError(t, f.conn.Create(orphan).Error)

	healthy := f.seedSettledOrder(t, 150000, 15000, 72*time.Hour)

	require.NoError(t, f.job.Run(context.Background()))

	wallet, err := f.ledger.GetWallet(context.Background(), healthy.VendorStoreID)
	require.NoError(t, err)
	assert.Equal(t, int64(135000), wallet.BalanceCents, "healthy order releases despite the orphan")
}

func TestReleaseJobRecordsZeroNetRelease(t *testing.T) {
	f := newReleaseFixture(t)
	// Commission equals the total; nothing to move.
	order := f.seedSettledOrder(t, 50000, 50000, 72*time.Hour)

	// The store has a wallet from earlier activity.
	_, err := f.ledger.ApplyEntry(context.Background(), ledger.ApplyEntryInput{
		StoreID:      order.VendorStoreID,
		Type:         enums.LedgerEntryTypeCredit,
		Direction:    enums.LedgerDirectionCredit,
		AmountCents:  10000,
		Currency:     enums.CurrencyXOF,
		BalanceField: enums.BalanceFieldAvailable,
		EntryKind:    enums.LedgerEntryKindAdjustment,
		Description:  "earlier activity",
	})
	require.NoError(t, err)

	require.NoError(t, f.job.Run(context.Background()))

	wallet, err := f.ledger.GetWallet(context.Background(), order.VendorStoreID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), wallet.BalanceCents, "zero release moves no funds")
	assert.Equal(t, int64(0), wallet.PendingBalanceCents)

	// The release row still lands, so the order leaves the eligible set.
	var releases []models.LedgerTransaction
	require.NoError(t, f.conn.
		Where("order_id = ? AND entry_kind = ?", order.ID, enums.LedgerEntryKindOrderRelease).
		Find(&releases).Error)
	require.Len(t, releases, 1)
	assert.Equal(t, int64(0), releases[0].AmountCents)

	require.NoError(t, f.job.Run(context.Background()))
	var count int64
	require.NoError(t, f.conn.Model(&models.LedgerTransaction{}).
		Where("order_id = ? AND entry_kind = ?", order.ID, enums.LedgerEntryKindOrderRelease).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
