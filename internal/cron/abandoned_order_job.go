// internal/cron/abandoned_order_job.go
package cron

import (
	"context"
	"fmt"

	"github.com/sportsfesthq/sportsfest-backend/internal/orders"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/metrics"
)

type orderSweeper interface {
	SweepAbandonedOrders(ctx context.Context, input orders.SweepInput) (*orders.SweepResult, error)
}

// AbandonedOrderJobParams configure the abandoned-order reclaimer job.
type AbandonedOrderJobParams struct {
	Logger  *logger.Logger
	Cleanup orderSweeper
	Metrics *metrics.CronJobMetrics
}

type abandonedOrderJob struct {
	logg    *logger.Logger
	cleanup orderSweeper
	metrics *metrics.CronJobMetrics
}

// NewAbandonedOrderJob builds the job that deletes stale unpaid orders using
// the same sweep the admin endpoint triggers.
func NewAbandonedOrderJob(params AbandonedOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cleanup == nil {
		return nil, fmt.Errorf("cleanup service required")
	}
	return &abandonedOrderJob{
		logg:    params.Logger,
		cleanup: params.Cleanup,
		metrics: params.Metrics,
	}, nil
}

func (j *abandonedOrderJob) Name() string { return "abandoned-orders" }

func (j *abandonedOrderJob) Run(ctx context.Context) error {
	result, err := j.cleanup.SweepAbandonedOrders(ctx, orders.SweepInput{Execute: true})
	if result == nil {
		return fmt.Errorf("sweep abandoned orders: %w", err)
	}

	if j.metrics != nil && result.ReleasedUnits > 0 {
		j.metrics.AddReleasedUnits(j.Name(), result.ReleasedUnits)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"found":          result.FoundOrders,
		"deleted":        result.DeletedOrders,
		"units_released": result.ReleasedUnits,
	})
	j.logg.Info(logCtx, "abandoned order job complete")
	if err != nil {
		// Partial sweeps keep their counts; the failures bubble up so the
		// cron service records the run as failed.
		return fmt.Errorf("sweep abandoned orders: %w", err)
	}
	return nil
}
