package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/responses"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
)

type ledgerAuditService interface {
	Replay(ctx context.Context, storeID uuid.UUID) (*ledger.ReplayResult, error)
}

// AdminLedgerReplay recomputes a wallet's balances from its entry history and
// reports any drift against the cached columns. Read-only.
func AdminLedgerReplay(svc ledgerAuditService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		storeID, err := uuidParam(r, "storeId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Replay(ctx, storeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !result.Consistent {
			driftCtx := logg.WithFields(ctx, map[string]any{
				"store_id":  storeID.String(),
				"wallet_id": result.WalletID.String(),
			})
			logg.Warn(driftCtx, "ledger drift detected")
		}
		responses.WriteSuccess(w, result)
	}
}
