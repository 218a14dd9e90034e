package refunds

import (
	"context"
	"encoding/json"
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
	// ErrReturnNotFound is returned when no return request matches the lookup.
	ErrReturnNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	// ErrNotRefundable rejects returns that have not been approved and received.
	ErrNotRefundable = pkgerrors.New(pkgerrors.CodeStateConflict, "return is not ready for refund")
)

// RefundProvider is the provider surface the refund engine depends on.
type RefundProvider interface {
	CreatePayout(ctx context.Context, params provider.PayoutCreateParams) (*provider.PayoutResult, error)
	GetTransaction(ctx context.Context, reference string) (*provider.Transaction, error)
}

type ServiceParams struct {
	DBClient *dbpkg.Client
	Repo     Repository
	Orders   orders.Repository
	Ledger   *ledger.Service
	Outbox   *outbox.Service
	Provider RefundProvider
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
	Now      func() time.Time
}

// Service refunds received returns. Money only moves on provider
// confirmation: initiation persists the provider reference, confirmation
// debits the vendor's available balance and closes the return.
type Service struct {
	dbClient *dbpkg.Client
	repo     Repository
	orders   orders.Repository
	ledger   *ledger.Service
	outbox   *outbox.Service
	provider RefundProvider
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DBClient == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("return repository is required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		dbClient: params.DBClient,
		repo:     params.Repo,
		orders:   params.Orders,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		provider: params.Provider,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// ProcessReturn initiates the customer refund for a received return. A
// provider failure here leaves the return untouched for a later retry; no
// ledger entry is written until the provider confirms.
func (s *Service) ProcessReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	if s.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider not configured")
	}
	request, err := s.findReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if request.Status == enums.ReturnStatusRefunded {
		return request, nil
	}
	if request.Status != enums.ReturnStatusReceived {
		return nil, ErrNotRefundable
	}
	if request.RefundAmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return has no refundable amount")
	}
	if request.RefundReference != nil {
		// Already handed to the provider; confirmation settles it.
		return request, nil
	}

	order, err := s.orders.FindByID(ctx, request.OrderID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order for return not found")
		}
		return nil, err
	}

	result, err := s.provider.CreatePayout(ctx, provider.PayoutCreateParams{
		Reference:      request.ID.String(),
		AmountCents:    request.RefundAmountCents,
		Currency:       order.Currency,
		Method:         enums.PayoutMethodMobileMoney,
		PhoneNumber:    order.CustomerPhone,
		IdempotencyKey: "pxm-refund-" + request.ID.String(),
	})
	if err != nil {
		s.logg.Error(ctx, "refund initiation failed", err)
		return nil, err
	}

	if err := s.repo.Patch(ctx, request.ID, map[string]any{
		"refund_reference": result.ProviderReference,
	}); err != nil {
		return nil, err
	}
	request.RefundReference = &result.ProviderReference
	return request, nil
}

// HandleProviderResult settles a refund from the provider's verdict. A
// confirmed refund debits the vendor wallet exactly once: the per-return
// unique entry makes a redelivered confirmation collapse into a no-op.
func (s *Service) HandleProviderResult(ctx context.Context, refundReference string, status provider.Status, failureReason string) (*models.ReturnRequest, error) {
	if refundReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reference is required")
	}
	request, err := s.repo.FindByRefundReference(ctx, refundReference)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrReturnNotFound
		}
		return nil, err
	}
	if request.Status == enums.ReturnStatusRefunded {
		return request, nil
	}

	switch status.Outcome() {
	case provider.OutcomeSucceeded:
		return s.settle(ctx, request)
	case provider.OutcomeFailed:
		// The payout never went through. Clearing the reference lets the
		// return be re-initiated.
		s.logg.Warn(ctx, "refund payout failed at provider: "+failureReason)
		if err := s.repo.Patch(ctx, request.ID, map[string]any{
			"refund_reference": nil,
		}); err != nil {
			return nil, err
		}
		request.RefundReference = nil
		return request, nil
	default:
		return request, nil
	}
}

// Verify reconciles one return against the provider's transaction record.
func (s *Service) Verify(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	if s.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider not configured")
	}
	request, err := s.findReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if request.Status == enums.ReturnStatusRefunded || request.RefundReference == nil {
		return request, nil
	}

	trx, err := s.provider.GetTransaction(ctx, *request.RefundReference)
	if err != nil {
		return nil, err
	}
	reason := trx.FailureCode
	if reason == "" {
		reason = "provider reported " + trx.Status.String()
	}
	return s.HandleProviderResult(ctx, *request.RefundReference, trx.Status, reason)
}

func (s *Service) settle(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	order, err := s.orders.FindByID(ctx, request.OrderID)
	if err != nil {
		return nil, err
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		returnID := request.ID
		_, txErr := s.ledger.ApplyEntryTx(ctx, tx, ledger.ApplyEntryInput{
			StoreID:      request.VendorStoreID,
			OrderID:      &request.OrderID,
			ReturnID:     &returnID,
			Type:         enums.LedgerEntryTypeRefund,
			Direction:    enums.LedgerDirectionDebit,
			AmountCents:  request.RefundAmountCents,
			Currency:     order.Currency,
			BalanceField: enums.BalanceFieldAvailable,
			EntryKind:    enums.LedgerEntryKindRefundDebit,
			Description:  "customer refund",
			Metadata:     refundMetadata(request),
		})
		if txErr != nil && !errors.Is(txErr, ledger.ErrDuplicateEntry) {
			return txErr
		}

		txRepo := s.repo.WithTx(tx)
		if txErr := txRepo.Patch(ctx, request.ID, map[string]any{
			"status": enums.ReturnStatusRefunded,
		}); txErr != nil {
			return txErr
		}
		if txErr := s.orders.WithTx(tx).Patch(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusRefunded,
		}); txErr != nil {
			return txErr
		}
		return s.emitCompleted(ctx, tx, request)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncRefundsProcessed()
	return s.findReturn(ctx, request.ID)
}

func (s *Service) emitCompleted(ctx context.Context, tx *gorm.DB, request *models.ReturnRequest) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundCompleted,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   request.ID,
		Data: payloads.RefundCompletedEvent{
			ReturnID:      request.ID,
			OrderID:       request.OrderID,
			VendorStoreID: request.VendorStoreID,
			CustomerID:    request.CustomerID,
			AmountCents:   request.RefundAmountCents,
		},
		OccurredAt: s.now(),
	})
}

func (s *Service) findReturn(ctx context.Context, returnID uuid.UUID) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id is required")
	}
	request, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrReturnNotFound
		}
		return nil, err
	}
	return request, nil
}

func refundMetadata(request *models.ReturnRequest) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"return_id": request.ID.String(),
		"order_id":  request.OrderID.String(),
	})
	return raw
}
