package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
)

var (
	// ErrInvalidAmount rejects zero or negative entry amounts.
	ErrInvalidAmount = pkgerrors.New(pkgerrors.CodeValidation, "entry amount must be positive")
	// ErrInsufficientFunds rejects debits that would drive a balance negative.
	ErrInsufficientFunds = pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient funds")
	// ErrDuplicateEntry signals the entry was already recorded for this order.
	ErrDuplicateEntry = pkgerrors.New(pkgerrors.CodeConflict, "ledger entry already recorded")
	// ErrWalletNotFound signals a debit against a store with no wallet.
	ErrWalletNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
)

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	DBClient *dbpkg.Client
	Repo     Repository
	Now      func() time.Time
}

// Service applies balance-affecting entries to vendor wallets. Every entry
// carries before/after snapshots so the balance can be rebuilt by replay.
type Service struct {
	dbClient *dbpkg.Client
	repo     Repository
	now      func() time.Time
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.DBClient == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repo == nil {
		return nil, errors.New("ledger repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{dbClient: params.DBClient, repo: params.Repo, now: now}, nil
}

// ApplyEntryInput captures the immutable data a ledger entry requires.
type ApplyEntryInput struct {
	StoreID           uuid.UUID
	OrderID           *uuid.UUID
	ReturnID          *uuid.UUID
	Type              enums.LedgerEntryType
	Direction         enums.LedgerDirection
	AmountCents       int64
	Currency          enums.Currency
	BalanceField      enums.BalanceField
	EntryKind         enums.LedgerEntryKind
	ProviderReference string
	Description       string
	Metadata          json.RawMessage
}

// TransferInput moves funds between the pending and available balances of a
// single wallet when an order's holding window elapses.
type TransferInput struct {
	StoreID     uuid.UUID
	OrderID     uuid.UUID
	AmountCents int64
	Currency    enums.Currency
	Description string
}

// TransferResult reports what a pending-to-available move actually did.
type TransferResult struct {
	MovedCents int64
	Clamped    bool
	Debit      *models.LedgerTransaction
	Credit     *models.LedgerTransaction
}

// ReplayResult compares cached wallet balances against a rebuild from entries.
type ReplayResult struct {
	WalletID               uuid.UUID  `json:"wallet_id"`
	EntryCount             int        `json:"entry_count"`
	ComputedAvailableCents int64      `json:"computed_available_cents"`
	ComputedPendingCents   int64      `json:"computed_pending_cents"`
	StoredAvailableCents   int64      `json:"stored_available_cents"`
	StoredPendingCents     int64      `json:"stored_pending_cents"`
	Consistent             bool       `json:"consistent"`
	FirstInconsistentEntry *uuid.UUID `json:"first_inconsistent_entry,omitempty"`
}

// EnsureWallet returns the store's wallet, creating it when missing.
func (s *Service) EnsureWallet(ctx context.Context, storeID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	wallet, err := s.repo.FindWalletByStoreID(ctx, storeID)
	if err == nil {
		return wallet, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	wallet = &models.Wallet{
		ID:       uuid.New(),
		StoreID:  storeID,
		Currency: currency,
	}
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return s.repo.FindWalletByStoreID(ctx, storeID)
		}
		return nil, err
	}
	return wallet, nil
}

// GetWallet returns the wallet for the store.
func (s *Service) GetWallet(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWalletByStoreID(ctx, storeID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return wallet, nil
}

// ApplyEntry records a single entry inside its own transaction.
func (s *Service) ApplyEntry(ctx context.Context, input ApplyEntryInput) (*models.LedgerTransaction, error) {
	var trx *models.LedgerTransaction
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		created, txErr := s.ApplyEntryTx(ctx, tx, input)
		if txErr != nil {
			return txErr
		}
		trx = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trx, nil
}

// ApplyEntryTx records an entry inside the caller's transaction, so money
// movement composes with order, payout, and refund state changes.
func (s *Service) ApplyEntryTx(ctx context.Context, tx *gorm.DB, input ApplyEntryInput) (*models.LedgerTransaction, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}

	txRepo := s.repo.WithTx(tx)

	wallet, err := s.lockWallet(ctx, txRepo, input.StoreID, input.Currency, input.Direction)
	if err != nil {
		return nil, err
	}

	before, after, err := applyToBalance(wallet, input.BalanceField, input.Direction, input.AmountCents)
	if err != nil {
		return nil, err
	}

	trx := &models.LedgerTransaction{
		ID:                 uuid.New(),
		WalletID:           wallet.ID,
		OrderID:            input.OrderID,
		ReturnID:           input.ReturnID,
		Type:               input.Type,
		Direction:          input.Direction,
		AmountCents:        input.AmountCents,
		Currency:           input.Currency,
		BalanceField:       input.BalanceField,
		BalanceBeforeCents: before,
		BalanceAfterCents:  after,
		Status:             enums.LedgerEntryStatusCompleted,
		EntryKind:          input.EntryKind,
		ProviderReference:  input.ProviderReference,
		Description:        input.Description,
		Metadata:           input.Metadata,
		ProcessedAt:        s.now(),
	}
	if err := txRepo.CreateTransaction(ctx, trx); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_ledger_transactions") {
			return nil, ErrDuplicateEntry
		}
		return nil, err
	}

	if err := txRepo.UpdateWalletBalances(ctx, wallet.ID, wallet.BalanceCents, wallet.PendingBalanceCents); err != nil {
		return nil, err
	}
	return trx, nil
}

// ApplyTransferTx moves order funds from pending to available in the caller's
// transaction. Refunds taken during the holding window shrink the pending
// balance, so the move clamps to what is actually held rather than failing.
// A zero move (clamped away, or a commission that swallowed the order) still
// writes the release row, so the order leaves the eligible set and a repeat
// release surfaces as ErrDuplicateEntry instead of silently doing nothing.
func (s *Service) ApplyTransferTx(ctx context.Context, tx *gorm.DB, input TransferInput) (*TransferResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.AmountCents < 0 {
		return nil, ErrInvalidAmount
	}

	txRepo := s.repo.WithTx(tx)
	wallet, err := txRepo.FindWalletForUpdate(ctx, input.StoreID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	moved := input.AmountCents
	clamped := false
	if wallet.PendingBalanceCents < moved {
		moved = wallet.PendingBalanceCents
		clamped = true
	}

	orderID := input.OrderID
	rows := make([]*models.LedgerTransaction, 0, 2)
	if moved > 0 {
		rows = append(rows, &models.LedgerTransaction{
			ID:                 uuid.New(),
			WalletID:           wallet.ID,
			OrderID:            &orderID,
			Type:               enums.LedgerEntryTypeTransfer,
			Direction:          enums.LedgerDirectionDebit,
			AmountCents:        moved,
			Currency:           input.Currency,
			BalanceField:       enums.BalanceFieldPending,
			BalanceBeforeCents: wallet.PendingBalanceCents,
			BalanceAfterCents:  wallet.PendingBalanceCents - moved,
			Status:             enums.LedgerEntryStatusCompleted,
			EntryKind:          enums.LedgerEntryKindOrderReleaseHold,
			Description:        input.Description,
			ProcessedAt:        s.now(),
		})
		wallet.PendingBalanceCents -= moved
	}

	credit := &models.LedgerTransaction{
		ID:                 uuid.New(),
		WalletID:           wallet.ID,
		OrderID:            &orderID,
		Type:               enums.LedgerEntryTypeTransfer,
		Direction:          enums.LedgerDirectionCredit,
		AmountCents:        moved,
		Currency:           input.Currency,
		BalanceField:       enums.BalanceFieldAvailable,
		BalanceBeforeCents: wallet.BalanceCents,
		BalanceAfterCents:  wallet.BalanceCents + moved,
		Status:             enums.LedgerEntryStatusCompleted,
		EntryKind:          enums.LedgerEntryKindOrderRelease,
		Description:        input.Description,
		ProcessedAt:        s.now(),
	}
	wallet.BalanceCents += moved
	rows = append(rows, credit)

	for _, trx := range rows {
		if err := txRepo.CreateTransaction(ctx, trx); err != nil {
			if dbpkg.IsUniqueViolation(err, "uq_ledger_transactions") {
				return nil, ErrDuplicateEntry
			}
			return nil, err
		}
	}
	if err := txRepo.UpdateWalletBalances(ctx, wallet.ID, wallet.BalanceCents, wallet.PendingBalanceCents); err != nil {
		return nil, err
	}

	result := &TransferResult{MovedCents: moved, Clamped: clamped, Credit: credit}
	if moved > 0 {
		result.Debit = rows[0]
	}
	return result, nil
}

// HasOrderEntry reports whether an entry of the given kind exists for the order.
func (s *Service) HasOrderEntry(ctx context.Context, orderID uuid.UUID, kind enums.LedgerEntryKind) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !kind.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry kind")
	}
	return s.repo.HasOrderEntry(ctx, orderID, kind)
}

// ListTransactions returns a page of entries for the store's wallet, newest first.
func (s *Service) ListTransactions(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.LedgerTransaction, string, error) {
	wallet, err := s.GetWallet(ctx, storeID)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.repo.ListByWallet(ctx, wallet.ID, params)
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

// Replay rebuilds both balances from the wallet's full entry history and
// compares the result against the cached columns.
func (s *Service) Replay(ctx context.Context, storeID uuid.UUID) (*ReplayResult, error) {
	wallet, err := s.GetWallet(ctx, storeID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAllByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	var available, pending int64
	var firstBad *uuid.UUID
	for i := range entries {
		entry := entries[i]
		var target *int64
		switch entry.BalanceField {
		case enums.BalanceFieldPending:
			target = &pending
		default:
			target = &available
		}
		if firstBad == nil && entry.BalanceBeforeCents != *target {
			id := entry.ID
			firstBad = &id
		}
		switch entry.Direction {
		case enums.LedgerDirectionCredit:
			*target += entry.AmountCents
		case enums.LedgerDirectionDebit:
			*target -= entry.AmountCents
		}
	}

	result := &ReplayResult{
		WalletID:               wallet.ID,
		EntryCount:             len(entries),
		ComputedAvailableCents: available,
		ComputedPendingCents:   pending,
		StoredAvailableCents:   wallet.BalanceCents,
		StoredPendingCents:     wallet.PendingBalanceCents,
		FirstInconsistentEntry: firstBad,
	}
	result.Consistent = firstBad == nil &&
		available == wallet.BalanceCents &&
		pending == wallet.PendingBalanceCents
	return result, nil
}

func (s *Service) lockWallet(ctx context.Context, txRepo Repository, storeID uuid.UUID, currency enums.Currency, direction enums.LedgerDirection) (*models.Wallet, error) {
	wallet, err := txRepo.FindWalletForUpdate(ctx, storeID)
	if err == nil {
		return wallet, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	// A debit against a store that never earned anything is a caller bug.
	if direction == enums.LedgerDirectionDebit {
		return nil, ErrWalletNotFound
	}
	wallet = &models.Wallet{
		ID:       uuid.New(),
		StoreID:  storeID,
		Currency: currency,
	}
	if err := txRepo.CreateWallet(ctx, wallet); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return txRepo.FindWalletForUpdate(ctx, storeID)
		}
		return nil, err
	}
	return wallet, nil
}

func validateEntryInput(input ApplyEntryInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if input.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry type")
	}
	if !input.Direction.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger direction")
	}
	if !input.BalanceField.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid balance field")
	}
	if !input.EntryKind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry kind")
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	return nil
}

// applyToBalance mutates the wallet's in-memory balance and returns the
// before/after snapshot for the touched field.
func applyToBalance(wallet *models.Wallet, field enums.BalanceField, direction enums.LedgerDirection, amount int64) (int64, int64, error) {
	var target *int64
	switch field {
	case enums.BalanceFieldPending:
		target = &wallet.PendingBalanceCents
	default:
		target = &wallet.BalanceCents
	}

	before := *target
	switch direction {
	case enums.LedgerDirectionCredit:
		*target = before + amount
	case enums.LedgerDirectionDebit:
		if before < amount {
			return 0, 0, ErrInsufficientFunds
		}
		*target = before - amount
	}
	return before, *target, nil
}
