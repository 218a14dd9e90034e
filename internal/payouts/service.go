package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/config"
	dbpkg "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/metrics"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox/payloads"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
)

var (
	// ErrBelowMinimum rejects withdrawal requests under the configured floor.
	ErrBelowMinimum = pkgerrors.New(pkgerrors.CodeValidation, "payout amount is below the minimum")
	// ErrPayoutNotFound is returned when no payout matches the lookup.
	ErrPayoutNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	// ErrMissingDetails rejects requests without recipient details for the method.
	ErrMissingDetails = pkgerrors.New(pkgerrors.CodeValidation, "payout recipient details are incomplete")
	// ErrUnverified2FA rejects requests flagged for 2FA without a completed check.
	ErrUnverified2FA = pkgerrors.New(pkgerrors.CodeForbidden, "payout requires two-factor verification")
)

// PayoutProvider is the provider surface payouts depend on.
type PayoutProvider interface {
	CreatePayout(ctx context.Context, params provider.PayoutCreateParams) (*provider.PayoutResult, error)
	GetTransaction(ctx context.Context, reference string) (*provider.Transaction, error)
}

type ServiceParams struct {
	DBClient *dbpkg.Client
	Repo     Repository
	Ledger   *ledger.Service
	Outbox   *outbox.Service
	Provider PayoutProvider
	Config   config.PayoutConfig
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
	Now      func() time.Time
}

// Service handles vendor withdrawals. The available balance is debited the
// moment a request is accepted; any payout that fails afterwards gets a
// compensating credit so the wallet nets to zero.
type Service struct {
	dbClient *dbpkg.Client
	repo     Repository
	ledger   *ledger.Service
	outbox   *outbox.Service
	provider PayoutProvider
	cfg      config.PayoutConfig
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DBClient == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("payout repository is required")
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
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		provider: params.Provider,
		cfg:      params.Config,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

type RequestInput struct {
	StoreID     uuid.UUID
	AmountCents int64
	Currency    enums.Currency
	Method      enums.PayoutMethod
	Details     models.PayoutDetails
	Requires2FA bool
	Verified2FA bool
}

// Request accepts a withdrawal: it debits the available balance and creates
// the payout row in one transaction, then hands the disbursement to the
// provider. Any dispatch failure, outage included, fails the payout and
// restores the debit.
func (s *Service) Request(ctx context.Context, input RequestInput) (*models.Payout, error) {
	if err := s.validateRequest(input); err != nil {
		return nil, err
	}

	fee := s.computeFee(input.AmountCents)
	detailsJSON, err := json.Marshal(maskDetails(input.Details))
	if err != nil {
		return nil, err
	}

	payout := &models.Payout{
		ID:          uuid.New(),
		StoreID:     input.StoreID,
		AmountCents: input.AmountCents,
		FeeCents:    fee,
		Currency:    input.Currency,
		Status:      enums.PayoutStatusPending,
		Method:      input.Method,
		Details:     detailsJSON,
		Requires2FA: input.Requires2FA,
		Verified2FA: input.Verified2FA,
		RequestedAt: s.now(),
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		entry, txErr := s.ledger.ApplyEntryTx(ctx, tx, ledger.ApplyEntryInput{
			StoreID:      input.StoreID,
			Type:         enums.LedgerEntryTypePayout,
			Direction:    enums.LedgerDirectionDebit,
			AmountCents:  input.AmountCents,
			Currency:     input.Currency,
			BalanceField: enums.BalanceFieldAvailable,
			EntryKind:    enums.LedgerEntryKindPayoutRequest,
			Description:  "payout request",
			Metadata:     payoutMetadata(payout.ID),
		})
		if txErr != nil {
			return txErr
		}
		payout.WalletID = entry.WalletID
		payout.LedgerTransactionID = &entry.ID

		if txErr := s.repo.WithTx(tx).Create(ctx, payout); txErr != nil {
			return txErr
		}
		return s.emitStatusEvent(ctx, tx, enums.EventPayoutRequested, payout, "")
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncPayoutsRequested()

	s.dispatch(ctx, payout, input.Details)
	return payout, nil
}

// dispatch sends the accepted payout to the provider. Failures here never
// roll back the debit; they transition the payout instead.
func (s *Service) dispatch(ctx context.Context, payout *models.Payout, details models.PayoutDetails) {
	if s.provider == nil {
		return
	}

	result, err := s.provider.CreatePayout(ctx, provider.PayoutCreateParams{
		Reference:      payout.ID.String(),
		AmountCents:    payout.AmountCents - payout.FeeCents,
		Currency:       payout.Currency,
		Method:         payout.Method,
		PhoneNumber:    details.PhoneNumber,
		BankName:       details.BankName,
		AccountNumber:  details.AccountNumber,
		AccountName:    details.AccountName,
		IdempotencyKey: "pxm-payout-" + payout.ID.String(),
	})
	if err != nil {
		// Network errors and explicit rejections both fail the payout: the
		// disbursement never left, so the debit is compensated right away.
		s.logg.Error(ctx, "payout dispatch failed", err)
		if _, failErr := s.Fail(ctx, payout.ID, err.Error()); failErr != nil {
			s.logg.Error(ctx, "payout compensation failed", failErr)
		}
		return
	}

	updates := map[string]any{
		"status":             enums.PayoutStatusProcessing,
		"provider_reference": result.ProviderReference,
	}
	if _, err := s.repo.TransitionFromOpen(ctx, payout.ID, updates); err != nil {
		s.logg.Error(ctx, "payout transition to processing failed", err)
		return
	}
	payout.Status = enums.PayoutStatusProcessing
	payout.ProviderReference = &result.ProviderReference
}

// Complete marks a payout transferred by the provider. Redeliveries after the
// terminal transition are no-ops.
func (s *Service) Complete(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.findPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status.IsTerminal() {
		return payout, nil
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, txErr := txRepo.TransitionFromOpen(ctx, payoutID, map[string]any{
			"status":       enums.PayoutStatusCompleted,
			"processed_at": s.now(),
		})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return nil
		}
		return s.emitStatusEvent(ctx, tx, enums.EventPayoutCompleted, payout, "")
	})
	if err != nil {
		return nil, err
	}
	return s.findPayout(ctx, payoutID)
}

// Fail marks a payout failed and restores the debited funds. The conditional
// status transition makes the compensation at-most-once: a redelivered
// failure finds the row already terminal and touches nothing.
func (s *Service) Fail(ctx context.Context, payoutID uuid.UUID, reason string) (*models.Payout, error) {
	payout, err := s.findPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status.IsTerminal() {
		return payout, nil
	}

	compensated := false
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		affected, txErr := txRepo.TransitionFromOpen(ctx, payoutID, map[string]any{
			"status":         enums.PayoutStatusFailed,
			"failure_reason": reason,
			"processed_at":   s.now(),
		})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return nil
		}

		_, txErr = s.ledger.ApplyEntryTx(ctx, tx, ledger.ApplyEntryInput{
			StoreID:      payout.StoreID,
			Type:         enums.LedgerEntryTypePayout,
			Direction:    enums.LedgerDirectionCredit,
			AmountCents:  payout.AmountCents,
			Currency:     payout.Currency,
			BalanceField: enums.BalanceFieldAvailable,
			EntryKind:    enums.LedgerEntryKindPayoutReversal,
			Description:  "payout reversal",
			Metadata:     payoutMetadata(payout.ID),
		})
		if txErr != nil {
			return txErr
		}
		compensated = true
		return s.emitStatusEvent(ctx, tx, enums.EventPayoutFailed, payout, reason)
	})
	if err != nil {
		return nil, err
	}
	if compensated {
		s.metrics.IncPayoutsCompensated()
	}
	return s.findPayout(ctx, payoutID)
}

// HandleProviderResult applies a provider status notification, looked up by
// the provider's own reference.
func (s *Service) HandleProviderResult(ctx context.Context, providerReference string, status provider.Status, failureReason string) (*models.Payout, error) {
	if providerReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}
	payout, err := s.repo.FindByProviderReference(ctx, providerReference)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}

	switch status.Outcome() {
	case provider.OutcomeSucceeded:
		return s.Complete(ctx, payout.ID)
	case provider.OutcomeFailed:
		if failureReason == "" {
			failureReason = "provider reported " + status.String()
		}
		return s.Fail(ctx, payout.ID, failureReason)
	default:
		return payout, nil
	}
}

// Verify reconciles one payout against the provider's transaction record.
func (s *Service) Verify(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if s.provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment provider not configured")
	}
	payout, err := s.findPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status.IsTerminal() {
		return payout, nil
	}
	if payout.ProviderReference == nil {
		// The dispatch never got an acknowledgement. Past the stale horizon
		// the request is treated as never-sent and the funds come back.
		if s.now().Sub(payout.RequestedAt) > s.cfg.StaleAfter {
			return s.Fail(ctx, payout.ID, "no provider acknowledgement")
		}
		return payout, nil
	}

	trx, err := s.provider.GetTransaction(ctx, *payout.ProviderReference)
	if err != nil {
		return nil, err
	}
	switch trx.Status.Outcome() {
	case provider.OutcomeSucceeded:
		return s.Complete(ctx, payout.ID)
	case provider.OutcomeFailed:
		reason := trx.FailureCode
		if reason == "" {
			reason = "provider reported " + trx.Status.String()
		}
		return s.Fail(ctx, payout.ID, reason)
	default:
		return payout, nil
	}
}

// ReconcileStale sweeps payouts stuck in pending or processing beyond the
// configured horizon and verifies each against the provider.
func (s *Service) ReconcileStale(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	stale, err := s.repo.FindStale(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	var errs error
	settled := 0
	for i := range stale {
		if _, err := s.Verify(ctx, stale[i].ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		settled++
	}
	return settled, errs
}

func (s *Service) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	return s.findPayout(ctx, payoutID)
}

// List returns a page of the store's payouts, newest first.
func (s *Service) List(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Payout, string, error) {
	rows, err := s.repo.ListByStore(ctx, storeID, params)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(params.Limit)
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *Service) findPayout(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return payout, nil
}

func (s *Service) validateRequest(input RequestInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payout method")
	}
	if input.AmountCents < s.cfg.MinimumCents {
		return ErrBelowMinimum
	}
	if input.Requires2FA && !input.Verified2FA {
		return ErrUnverified2FA
	}
	switch input.Method {
	case enums.PayoutMethodMobileMoney:
		if input.Details.PhoneNumber == "" {
			return ErrMissingDetails
		}
	case enums.PayoutMethodBankTransfer:
		if input.Details.BankName == "" || input.Details.AccountNumber == "" {
			return ErrMissingDetails
		}
	}
	return nil
}

// computeFee charges the configured percentage with a floor. The percent is
// parsed as a decimal so 1.5% of odd amounts never drifts on float math.
func (s *Service) computeFee(amountCents int64) int64 {
	percent, err := decimal.NewFromString(s.cfg.FeePercent)
	if err != nil {
		percent = decimal.Zero
	}
	fee := decimal.NewFromInt(amountCents).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	if fee < s.cfg.FeeFloorCents {
		fee = s.cfg.FeeFloorCents
	}
	return fee
}

func (s *Service) emitStatusEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payout *models.Payout, failureReason string) error {
	if s.outbox == nil {
		return nil
	}
	data := payloadFromPayout(payout, failureReason)
	data.Status = statusForEvent(eventType, payout.Status)
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Data:          data,
		OccurredAt:    s.now(),
	})
}

func statusForEvent(eventType enums.OutboxEventType, current enums.PayoutStatus) enums.PayoutStatus {
	switch eventType {
	case enums.EventPayoutCompleted:
		return enums.PayoutStatusCompleted
	case enums.EventPayoutFailed:
		return enums.PayoutStatusFailed
	default:
		return current
	}
}

func payloadFromPayout(payout *models.Payout, failureReason string) payloads.PayoutStatusEvent {
	p := payloads.PayoutStatusEvent{
		PayoutID:      payout.ID,
		StoreID:       payout.StoreID,
		AmountCents:   payout.AmountCents,
		FeeCents:      payout.FeeCents,
		Currency:      payout.Currency,
		FailureReason: failureReason,
	}
	if payout.ProviderReference != nil {
		p.ProviderReference = *payout.ProviderReference
	}
	return p
}

func payoutMetadata(payoutID uuid.UUID) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"payout_id": payoutID.String()})
	return raw
}

// maskDetails hides account identifiers before they hit storage, keeping only
// the last four characters.
func maskDetails(details models.PayoutDetails) models.PayoutDetails {
	details.PhoneNumber = maskTail(details.PhoneNumber)
	details.AccountNumber = maskTail(details.AccountNumber)
	return details
}

func maskTail(value string) string {
	if len(value) <= 4 {
		return value
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
