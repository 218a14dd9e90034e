package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/orders"
	dbpkg "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/metrics"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox/payloads"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
)

var (
	// ErrOrderNotFound reports a payment reference no order claims.
	ErrOrderNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment reference")
	// ErrAmountMismatch rejects confirmations whose settled amount differs from the order total.
	ErrAmountMismatch = pkgerrors.New(pkgerrors.CodeStateConflict, "settled amount does not match order total")
)

// TransactionGetter is the provider surface payment verification needs.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, reference string) (*provider.Transaction, error)
}

// ServiceParams groups dependencies for the settlement service.
type ServiceParams struct {
	DBClient *dbpkg.Client
	Orders   orders.Repository
	Ledger   *ledger.Service
	Outbox   *outbox.Service
	Provider TransactionGetter
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
	Now      func() time.Time
}

// Service settles provider payments into vendor wallets. Confirmation credits
// the pending balance with the order total net of commission; the funds stay
// pending until the release job moves them.
type Service struct {
	dbClient *dbpkg.Client
	orders   orders.Repository
	ledger   *ledger.Service
	outbox   *outbox.Service
	provider TransactionGetter
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
	now      func() time.Time
}

// NewService wires a settlement service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.DBClient == nil {
		return nil, errors.New("db client is required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		dbClient: params.DBClient,
		orders:   params.Orders,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		provider: params.Provider,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// ConfirmPaymentInput carries what the provider reported about a settled payment.
type ConfirmPaymentInput struct {
	PaymentReference string
	AmountCents      int64 // 0 skips the amount check
	ProviderStatus   provider.Status
}

// ConfirmPayment marks the order paid and credits the vendor's pending
// balance in one transaction. Redeliveries are no-ops: the order state check
// catches most, and the ledger's storage idempotency catches the rest.
func (s *Service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.VendorOrder, error) {
	order, err := s.orders.FindByPaymentReference(ctx, input.PaymentReference)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}
	if input.AmountCents > 0 && input.AmountCents != order.TotalCents {
		return nil, ErrAmountMismatch
	}

	netCents := order.TotalCents - order.CommissionCents
	orderID := order.ID

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.orders.WithTx(tx)

		updates := map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"updated_at":     s.now(),
		}
		if order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusPaid
		}
		if err := txOrders.Patch(ctx, order.ID, updates); err != nil {
			return err
		}

		if netCents > 0 {
			_, ledgerErr := s.ledger.ApplyEntryTx(ctx, tx, ledger.ApplyEntryInput{
				StoreID:           order.VendorStoreID,
				OrderID:           &orderID,
				Type:              enums.LedgerEntryTypeSale,
				Direction:         enums.LedgerDirectionCredit,
				AmountCents:       netCents,
				Currency:          order.Currency,
				BalanceField:      enums.BalanceFieldPending,
				EntryKind:         enums.LedgerEntryKindPaymentCredit,
				ProviderReference: input.PaymentReference,
				Description:       "payment settled for order " + order.OrderNumber,
			})
			if ledgerErr != nil && !errors.Is(ledgerErr, ledger.ErrDuplicateEntry) {
				return ledgerErr
			}
		}

		return s.emitIfConfigured(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregateVendorOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.PaymentConfirmedEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				VendorStoreID:    order.VendorStoreID,
				CustomerID:       order.CustomerID,
				TotalCents:       order.TotalCents,
				CommissionCents:  order.CommissionCents,
				Currency:         order.Currency,
				PaymentReference: input.PaymentReference,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.PaymentStatus = enums.PaymentStatusPaid
	if order.Status == enums.OrderStatusPending {
		order.Status = enums.OrderStatusPaid
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "payment confirmed")
	}
	return order, nil
}

// FailPayment records a declined payment. Orders already paid are left alone:
// a late failure event for a settled payment is provider noise.
func (s *Service) FailPayment(ctx context.Context, paymentReference, reason string) (*models.VendorOrder, error) {
	order, err := s.orders.FindByPaymentReference(ctx, paymentReference)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.PaymentStatus != enums.PaymentStatusPending {
		return order, nil
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.orders.WithTx(tx)
		if err := txOrders.Patch(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"updated_at":     s.now(),
		}); err != nil {
			return err
		}

		return s.emitIfConfigured(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateVendorOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				VendorStoreID:    order.VendorStoreID,
				PaymentReference: paymentReference,
				Reason:           reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.PaymentStatus = enums.PaymentStatusFailed
	return order, nil
}

// VerifyPayment re-queries the provider for the order's payment and
// reconciles local state with the provider's answer.
func (s *Service) VerifyPayment(ctx context.Context, orderID uuid.UUID) (*models.VendorOrder, error) {
	if s.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider not configured")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.PaymentReference == nil || *order.PaymentReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment reference")
	}

	trx, err := s.provider.GetTransaction(ctx, *order.PaymentReference)
	if err != nil {
		return nil, err
	}

	switch trx.Status.Outcome() {
	case provider.OutcomeSucceeded:
		amountCents, convErr := provider.FromProviderAmount(trx.Amount, order.Currency)
		if convErr != nil {
			return nil, convErr
		}
		return s.ConfirmPayment(ctx, ConfirmPaymentInput{
			PaymentReference: *order.PaymentReference,
			AmountCents:      amountCents,
			ProviderStatus:   trx.Status,
		})
	case provider.OutcomeFailed:
		return s.FailPayment(ctx, *order.PaymentReference, trx.FailureCode)
	default:
		return order, nil
	}
}

func (s *Service) emitIfConfigured(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.EmitIfNotExists(ctx, tx, event)
}
