package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/responses"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/validators"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/pagination"
)

type payoutService interface {
	Request(ctx context.Context, input payouts.RequestInput) (*models.Payout, error)
	Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	List(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Payout, string, error)
	Verify(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
}

type payoutRequestBody struct {
	AmountCents int64                `json:"amount_cents" validate:"required,min=1"`
	Currency    string               `json:"currency" validate:"required,oneof=XOF USD"`
	Method      string               `json:"method" validate:"required,oneof=mobile_money bank_transfer"`
	Details     payoutDetailsPayload `json:"details" validate:"required"`
	Requires2FA bool                 `json:"requires_2fa"`
	Verified2FA bool                 `json:"verified_2fa"`
}

type payoutDetailsPayload struct {
	PhoneNumber   string `json:"phone_number,omitempty" validate:"omitempty,e164"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
}

// VendorPayoutRequest accepts a withdrawal for the calling store.
func VendorPayoutRequest(svc payoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := storeIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body payoutRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payout, err := svc.Request(ctx, payouts.RequestInput{
			StoreID:     storeID,
			AmountCents: body.AmountCents,
			Currency:    enums.Currency(body.Currency),
			Method:      enums.PayoutMethod(body.Method),
			Details: models.PayoutDetails{
				PhoneNumber:   body.Details.PhoneNumber,
				BankName:      body.Details.BankName,
				AccountNumber: body.Details.AccountNumber,
				AccountName:   body.Details.AccountName,
			},
			Requires2FA: body.Requires2FA,
			Verified2FA: body.Verified2FA,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// VendorPayoutList returns the store's payouts newest first.
func VendorPayoutList(svc payoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := storeIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, next, err := svc.List(ctx, storeID, paginationFromRequest(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"payouts":     rows,
			"next_cursor": next,
		})
	}
}

// VendorPayoutDetail returns one payout, scoped to the calling store.
func VendorPayoutDetail(svc payoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := storeIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payout, err := svc.Get(ctx, payoutID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if payout.StoreID != storeID {
			responses.WriteError(ctx, logg, w, payouts.ErrPayoutNotFound)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// VendorPayoutVerify forces a provider lookup for a payout stuck in flight.
func VendorPayoutVerify(svc payoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := storeIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		current, err := svc.Get(ctx, payoutID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if current.StoreID != storeID {
			responses.WriteError(ctx, logg, w, payouts.ErrPayoutNotFound)
			return
		}

		payout, err := svc.Verify(ctx, payoutID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}
