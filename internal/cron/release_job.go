package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/orders"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/metrics"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox/payloads"
)

const (
	defaultHoldingWindow = 48 * time.Hour
	defaultReleaseBatch  = 500
)

// txRunner runs a function inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ReleaseJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Orders        orders.Repository
	Ledger        *ledger.Service
	Outbox        *outbox.Service
	Metrics       *metrics.SettlementMetrics
	HoldingWindow time.Duration
	BatchSize     int
}

// NewReleaseJob builds the job that moves matured order proceeds from the
// pending to the available balance.
func NewReleaseJob(params ReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	window := params.HoldingWindow
	if window <= 0 {
		window = defaultHoldingWindow
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReleaseBatch
	}
	return &releaseJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		window:  window,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type releaseJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  orders.Repository
	ledger  *ledger.Service
	outbox  *outbox.Service
	metrics *metrics.SettlementMetrics
	window  time.Duration
	batch   int
	now     func() time.Time
}

func (j *releaseJob) Name() string { return "release-eligible-orders" }

// Run releases every matured order in the batch, continuing past individual
// failures so one bad order never blocks the rest of the sweep.
func (j *releaseJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	eligible, err := j.orders.FindEligibleForRelease(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("scan eligible orders: %w", err)
	}

	var errs error
	released := 0
	for i := range eligible {
		order := eligible[i]
		if err := j.releaseOrder(ctx, &order); err != nil {
			j.recordFailure()
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		released++
		j.recordRelease()
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"eligible": len(eligible),
		"released": released,
	})
	j.logg.Info(logCtx, "order release sweep complete")
	return errs
}

func (j *releaseJob) releaseOrder(ctx context.Context, order *models.VendorOrder) error {
	already, err := j.ledger.HasOrderEntry(ctx, order.ID, enums.LedgerEntryKindOrderRelease)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	net := order.TotalCents - order.CommissionCents
	if net <= 0 {
		// The commission swallowed the order. A zero release is still
		// recorded so the order leaves the eligible set; a negative one
		// never is.
		j.logg.Warn(ctx, "order "+order.ID.String()+" has no net proceeds to release")
		if net < 0 {
			net = 0
		}
	}

	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		result, txErr := j.ledger.ApplyTransferTx(ctx, tx, ledger.TransferInput{
			StoreID:     order.VendorStoreID,
			OrderID:     order.ID,
			AmountCents: net,
			Currency:    order.Currency,
			Description: "order proceeds release",
		})
		if txErr != nil {
			// Lost the race against a concurrent sweep. The funds moved once.
			if errors.Is(txErr, ledger.ErrDuplicateEntry) {
				return nil
			}
			if errors.Is(txErr, ledger.ErrWalletNotFound) {
				j.logg.Warn(ctx, "no wallet for store "+order.VendorStoreID.String()+"; skipping release")
				return nil
			}
			return txErr
		}
		if result.Clamped {
			logCtx := j.logg.WithFields(ctx, map[string]any{
				"order_id":    order.ID,
				"moved_cents": result.MovedCents,
				"net_cents":   net,
			})
			j.logg.Warn(logCtx, "release clamped to held funds")
		}
		if result.MovedCents == 0 {
			return nil
		}
		return j.emitReleased(ctx, tx, order, result.MovedCents)
	})
}

func (j *releaseJob) emitReleased(ctx context.Context, tx *gorm.DB, order *models.VendorOrder, movedCents int64) error {
	if j.outbox == nil {
		return nil
	}
	return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFundsReleased,
		AggregateType: enums.AggregateVendorOrder,
		AggregateID:   order.ID,
		Data: payloads.FundsReleasedEvent{
			OrderID:       order.ID,
			VendorStoreID: order.VendorStoreID,
			AmountCents:   movedCents,
			ReleasedAt:    j.now().UTC(),
		},
		OccurredAt: j.now(),
	})
}

func (j *releaseJob) recordRelease() {
	if j.metrics == nil {
		return
	}
	j.metrics.IncOrdersReleased()
}

func (j *releaseJob) recordFailure() {
	if j.metrics == nil {
		return
	}
	j.metrics.IncReleaseFailures()
}
