package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/api/routes"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/orders"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/refunds"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/settlement"
	providerwebhook "github.com/aboudou-cto-bloko/pixelmart-sub001/internal/webhooks/provider"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/config"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/metrics"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/migrate"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	providerClient, err := provider.NewClient(context.Background(), cfg.Provider, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment provider", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DBClient: dbClient,
		Repo:     ledger.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		DBClient: dbClient,
		Orders:   ordersRepo,
		Ledger:   ledgerService,
		Outbox:   outboxService,
		Provider: providerClient,
		Logger:   logg,
		Metrics:  settlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		DBClient: dbClient,
		Repo:     payouts.NewRepository(dbClient.DB()),
		Ledger:   ledgerService,
		Outbox:   outboxService,
		Provider: providerClient,
		Config:   cfg.Payouts,
		Logger:   logg,
		Metrics:  settlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	refundService, err := refunds.NewService(refunds.ServiceParams{
		DBClient: dbClient,
		Repo:     refunds.NewRepository(dbClient.DB()),
		Orders:   ordersRepo,
		Ledger:   ledgerService,
		Outbox:   outboxService,
		Provider: providerClient,
		Logger:   logg,
		Metrics:  settlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
		os.Exit(1)
	}

	webhookService, err := providerwebhook.NewService(providerwebhook.ServiceParams{
		Settlement: settlementService,
		Payouts:    payoutService,
		Refunds:    refundService,
		Logger:     logg,
		Metrics:    settlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := providerwebhook.NewIdempotencyGuard(redisClient, cfg.Provider.IdempotencyTTL, "provider-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			ledgerService,
			settlementService,
			payoutService,
			providerClient,
			webhookService,
			webhookGuard,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server stopped")
}
