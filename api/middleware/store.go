package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/responses"
	pkgerrors "github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/errors"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
)

const storeIDHeader = "X-Store-Id"

// StoreHeader lifts the authenticated store identity from the gateway header
// into the request context. The upstream gateway owns authentication; this
// service only trusts the header it forwards.
func StoreHeader(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(storeIDHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid store id header"))
				return
			}
			ctx := WithStoreID(r.Context(), raw)
			if logg != nil {
				ctx = logg.WithStoreID(ctx, raw)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StoreContext rejects requests that reached a vendor route without a store
// identity.
func StoreContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if StoreIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
