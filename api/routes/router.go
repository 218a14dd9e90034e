package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/controllers"
	webhookcontrollers "github.com/aboudou-cto-bloko/pixelmart-sub001/api/controllers/webhooks"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/middleware"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/settlement"
	providerwebhook "github.com/aboudou-cto-bloko/pixelmart-sub001/internal/webhooks/provider"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/config"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	ledgerService *ledger.Service,
	settlementService *settlement.Service,
	payoutService *payouts.Service,
	providerClient *provider.Client,
	webhookService *providerwebhook.Service,
	webhookGuard *providerwebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/provider", webhookcontrollers.ProviderWebhook(webhookService, providerClient, webhookGuard, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/{orderId}/payment/verify", controllers.OrderPaymentVerify(settlementService, logg))
	})

	r.Route("/api/v1/vendor", func(r chi.Router) {
		r.Use(middleware.StoreHeader(logg))
		r.Use(middleware.StoreContext(logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.VendorWalletBalance(ledgerService, logg))
			r.Get("/transactions", controllers.VendorWalletTransactions(ledgerService, logg))
		})
		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", controllers.VendorPayoutRequest(payoutService, logg))
			r.Get("/", controllers.VendorPayoutList(payoutService, logg))
			r.Get("/{payoutId}", controllers.VendorPayoutDetail(payoutService, logg))
			r.Post("/{payoutId}/verify", controllers.VendorPayoutVerify(payoutService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/ledger/{storeId}/replay", controllers.AdminLedgerReplay(ledgerService, logg))
	})

	return r
}
