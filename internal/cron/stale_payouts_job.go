package cron

import (
	"context"
	"fmt"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/internal/payouts"
	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/logger"
)

const defaultStaleBatch = 200

type StalePayoutsJobParams struct {
	Logger    *logger.Logger
	Payouts   *payouts.Service
	BatchSize int
}

// NewStalePayoutsJob builds the job that reconciles payouts stuck in flight
// past the configured horizon.
func NewStalePayoutsJob(params StalePayoutsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultStaleBatch
	}
	return &stalePayoutsJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		batch:   batch,
	}, nil
}

type stalePayoutsJob struct {
	logg    *logger.Logger
	payouts *payouts.Service
	batch   int
}

func (j *stalePayoutsJob) Name() string { return "reconcile-stale-payouts" }

func (j *stalePayoutsJob) Run(ctx context.Context) error {
	settled, err := j.payouts.ReconcileStale(ctx, j.batch)
	logCtx := j.logg.WithField(ctx, "settled", settled)
	j.logg.Info(logCtx, "stale payout reconciliation complete")
	if err != nil {
		return fmt.Errorf("reconcile stale payouts: %w", err)
	}
	return nil
}
