// internal/cron/cart_expiry_job.go
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
	"github.com/sportsfesthq/sportsfest-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartExpiryJobParams configure the expired-cart reclaimer.
type CartExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Carts     *cart.Repository
	Inventory *inventory.Repository
	Metrics   *metrics.CronJobMetrics
}

// CartExpirySummary reports one sweep of expired cart sessions.
type CartExpirySummary struct {
	DeletedCartCount     int `json:"deletedCartCount"`
	TotalUnitsReleased   int `json:"totalUnitsReleased"`
	AffectedProductCount int `json:"affectedProductCount"`
}

type cartExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	carts     *cart.Repository
	inventory *inventory.Repository
	metrics   *metrics.CronJobMetrics
	now       func() time.Time
}

// NewCartExpiryJob builds the job that deletes expired cart sessions and
// returns their reserved units to the product ledger.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &cartExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		carts:     params.Carts,
		inventory: params.Inventory,
		metrics:   params.Metrics,
		now:       time.Now,
	}, nil
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

// Run reclaims every expired cart, one transaction per cart so a failure
// leaves earlier carts fully reclaimed and later ones untouched for the next
// cycle.
func (j *cartExpiryJob) Run(ctx context.Context) error {
	expired, err := j.carts.ListExpired(ctx, j.now())
	if err != nil {
		return fmt.Errorf("list expired carts: %w", err)
	}

	summary := CartExpirySummary{}
	affected := map[uuid.UUID]struct{}{}
	var errs error
	for _, session := range expired {
		released, reclaimed, err := j.reclaimCart(ctx, session, affected)
		if err != nil {
			// One broken cart must not strand every other expired cart's
			// units; record it and keep sweeping.
			errs = multierr.Append(errs, fmt.Errorf("reclaim cart %s: %w", session.ID, err))
			continue
		}
		if !reclaimed {
			continue
		}
		summary.DeletedCartCount++
		summary.TotalUnitsReleased += released
	}
	summary.AffectedProductCount = len(affected)

	if j.metrics != nil && summary.TotalUnitsReleased > 0 {
		j.metrics.AddReleasedUnits(j.Name(), summary.TotalUnitsReleased)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"deleted_carts":     summary.DeletedCartCount,
		"units_released":    summary.TotalUnitsReleased,
		"affected_products": summary.AffectedProductCount,
		"failed_carts":      len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "expired cart sweep complete")
	return errs
}

// reclaimCart returns the units it put back and whether this sweep actually
// claimed the cart. Deleting the session row comes first: a checkout
// converting the same cart also deletes that row, so whichever transaction
// lands first owns the reserved units and the loser backs off.
func (j *cartExpiryJob) reclaimCart(ctx context.Context, session models.CartSession, affected map[uuid.UUID]struct{}) (int, bool, error) {
	// Aggregate per product so one cart with many lines of the same product
	// releases in a single statement.
	perProduct := map[uuid.UUID]int{}
	for _, line := range session.Items {
		perProduct[line.ProductID] += line.Quantity
	}

	released := 0
	claimed := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		released = 0
		claimed = false
		txLedger := j.inventory.WithTx(tx)
		txCarts := j.carts.WithTx(tx)

		deleted, err := txCarts.DeleteCart(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		if deleted == 0 {
			// A checkout converted this cart and now owns its holds.
			return nil
		}
		claimed = true
		if err := txCarts.DeleteItemsByCart(ctx, session.ID); err != nil {
			return fmt.Errorf("delete cart lines: %w", err)
		}
		for productID, qty := range perProduct {
			if err := txLedger.Release(ctx, productID, qty); err != nil {
				return err
			}
			released += qty
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if claimed {
		for productID := range perProduct {
			affected[productID] = struct{}{}
		}
	}
	return released, claimed, nil
}
