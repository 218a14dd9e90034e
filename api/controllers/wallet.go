package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/middleware"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/responses"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
)

type walletService interface {
	GetWallet(ctx context.Context, storeID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.LedgerTransaction, string, error)
}

// VendorWalletBalance returns the caller's wallet with both balances.
func VendorWalletBalance(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := storeIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wallet, err := svc.GetWallet(ctx, storeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"store_id":              wallet.StoreID,
			"currency":              wallet.Currency,
			"balance_cents":         wallet.BalanceCents,
			"pending_balance_cents": wallet.PendingBalanceCents,
		})
	}
}

// VendorWalletTransactions returns a cursor-paginated ledger page, newest first.
func VendorWalletTransactions(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := storeIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params := paginationFromRequest(r)
		rows, next, err := svc.ListTransactions(ctx, storeID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": rows,
			"next_cursor":  next,
		})
	}
}

func storeIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.StoreIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	storeID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid store id")
	}
	return storeID, nil
}

func paginationFromRequest(r *http.Request) pagination.Params {
	params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	return params
}
