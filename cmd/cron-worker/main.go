package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/cron"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/ledger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/orders"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/config"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/db"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/metrics"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/migrate"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/outbox"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/provider"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DBClient: dbClient,
		Repo:     ledger.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

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

	releaseJob, err := cron.NewReleaseJob(cron.ReleaseJobParams{
		Logger:        logg,
		DB:            dbClient,
		Orders:        ordersRepo,
		Ledger:        ledgerService,
		Outbox:        outboxService,
		Metrics:       settlementMetrics,
		HoldingWindow: cfg.Settlement.HoldingWindow,
		BatchSize:     cfg.Settlement.ReleaseBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create release job", err)
		os.Exit(1)
	}

	stalePayoutsJob, err := cron.NewStalePayoutsJob(cron.StalePayoutsJobParams{
		Logger:  logg,
		Payouts: payoutService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale payouts job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(releaseJob, stalePayoutsJob, retentionJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Settlement.ReleaseInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
