package providerwebhook

import (
	"context"
	"errors"
	"strings"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/refunds"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/settlement"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/metrics"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
)

type settlementService interface {
	ConfirmPayment(ctx context.Context, input settlement.ConfirmPaymentInput) (*models.VendorOrder, error)
	FailPayment(ctx context.Context, paymentReference, reason string) (*models.VendorOrder, error)
}

type payoutService interface {
	HandleProviderResult(ctx context.Context, providerReference string, status provider.Status, failureReason string) (*models.Payout, error)
}

type refundService interface {
	HandleProviderResult(ctx context.Context, refundReference string, status provider.Status, failureReason string) (*models.ReturnRequest, error)
}

type ServiceParams struct {
	Settlement settlementService
	Payouts    payoutService
	Refunds    refundService
	Logger     *logger.Logger
	Metrics    *metrics.SettlementMetrics
}

// Service routes provider transaction events to the settlement, payout, and
// refund engines. Handlers are idempotent; the controller's redis guard only
// short-circuits redeliveries.
type Service struct {
	settlement settlementService
	payouts    payoutService
	refunds    refundService
	logg       *logger.Logger
	metrics    *metrics.SettlementMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payout service required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		settlement: params.Settlement,
		payouts:    params.Payouts,
		refunds:    params.Refunds,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// ProviderWebhookEvent is the provider's event envelope.
type ProviderWebhookEvent struct {
	EventID string                `json:"id"`
	Name    string                `json:"name"`
	Entity  ProviderWebhookEntity `json:"entity"`
}

// ProviderWebhookEntity carries the transaction the event is about.
type ProviderWebhookEntity struct {
	Reference   string            `json:"reference"`
	Status      provider.Status   `json:"status"`
	Amount      int64             `json:"amount"`
	Currency    enums.Currency    `json:"currency"`
	Mode        string            `json:"mode"`
	FailureCode string            `json:"failure_code"`
	Metadata    map[string]string `json:"metadata"`
}

// HandleEvent processes one provider transaction event. Events the engine
// does not care about, and references it cannot match, are acknowledged
// without effect so the provider stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *ProviderWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event required")
	}

	name := strings.ToLower(event.Name)
	if !strings.HasPrefix(name, "transaction.") {
		s.metrics.IncWebhookEvent(name, "ignored")
		return nil
	}
	if event.Entity.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference missing")
	}
	if event.Entity.Status.Outcome() == provider.OutcomePending {
		// Initiated / pending notifications carry no verdict yet.
		s.metrics.IncWebhookEvent(name, "ignored")
		return nil
	}

	err := s.route(ctx, event)
	if err != nil {
		s.metrics.IncWebhookEvent(name, "failed")
		return err
	}
	s.metrics.IncWebhookEvent(name, "processed")
	return nil
}

func (s *Service) route(ctx context.Context, event *ProviderWebhookEvent) error {
	switch event.Entity.Metadata["kind"] {
	case "payment":
		return ignoreNotFound(s.handlePayment(ctx, event), settlement.ErrOrderNotFound)
	case "payout":
		return ignoreNotFound(s.handlePayout(ctx, event), payouts.ErrPayoutNotFound)
	case "refund":
		return ignoreNotFound(s.handleRefund(ctx, event), refunds.ErrReturnNotFound)
	}

	// No routing hint: try each engine until one claims the reference.
	if err := s.handlePayment(ctx, event); !errors.Is(err, settlement.ErrOrderNotFound) {
		return err
	}
	if err := s.handlePayout(ctx, event); !errors.Is(err, payouts.ErrPayoutNotFound) {
		return err
	}
	if err := s.handleRefund(ctx, event); !errors.Is(err, refunds.ErrReturnNotFound) {
		return err
	}
	s.logg.Warn(ctx, "provider event for unknown reference "+event.Entity.Reference)
	return nil
}

func (s *Service) handlePayment(ctx context.Context, event *ProviderWebhookEvent) error {
	entity := event.Entity
	switch entity.Status.Outcome() {
	case provider.OutcomeSucceeded:
		amountCents, convErr := provider.FromProviderAmount(entity.Amount, entity.Currency)
		if convErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, convErr, "invalid transaction amount")
		}
		_, err := s.settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{
			PaymentReference: entity.Reference,
			AmountCents:      amountCents,
			ProviderStatus:   entity.Status,
		})
		return err
	case provider.OutcomeFailed:
		_, err := s.settlement.FailPayment(ctx, entity.Reference, failureReason(entity))
		return err
	default:
		return nil
	}
}

func (s *Service) handlePayout(ctx context.Context, event *ProviderWebhookEvent) error {
	_, err := s.payouts.HandleProviderResult(ctx, event.Entity.Reference, event.Entity.Status, failureReason(event.Entity))
	return err
}

func (s *Service) handleRefund(ctx context.Context, event *ProviderWebhookEvent) error {
	_, err := s.refunds.HandleProviderResult(ctx, event.Entity.Reference, event.Entity.Status, failureReason(event.Entity))
	return err
}

func failureReason(entity ProviderWebhookEntity) string {
	if entity.FailureCode != "" {
		return entity.FailureCode
	}
	return "provider reported " + entity.Status.String()
}

func ignoreNotFound(err error, sentinel error) error {
	if errors.Is(err, sentinel) {
		return nil
	}
	return err
}
