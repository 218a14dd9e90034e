package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/responses"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db/models"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
)

type settlementService interface {
	VerifyPayment(ctx context.Context, orderID uuid.UUID) (*models.VendorOrder, error)
}

// OrderPaymentVerify re-checks an order's payment against the provider record.
// It is the recovery path for orders whose confirmation webhook never landed.
func OrderPaymentVerify(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.VerifyPayment(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"order_id":       order.ID,
			"payment_status": order.PaymentStatus,
		})
	}
}
