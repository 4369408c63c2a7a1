// internal/orders/cleanup.go
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/cart"
	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

// SweepInput controls one abandoned-order sweep. OlderThanHours falls back to
// the configured default when zero. Execute false runs a dry pass that only
// counts; Quick skips loading order lines and reports the count alone.
type SweepInput struct {
	OlderThanHours int
	Execute        bool
	Quick          bool
	EventYearID    *uuid.UUID
}

// SweepResult reports what one sweep saw and did.
type SweepResult struct {
	FoundOrders    int  `json:"foundOrders"`
	DeletedOrders  int  `json:"deletedOrders"`
	ReleasedUnits  int  `json:"releasedUnits"`
	DryRun         bool `json:"dryRun"`
	OlderThanHours int  `json:"olderThanHours"`
}

// CartHealth is the liveness snapshot over all cart sessions.
type CartHealth struct {
	ActiveCarts  int64 `json:"activeCarts"`
	ExpiredCarts int64 `json:"expiredCarts"`
}

// CleanupService reclaims abandoned pending orders. Both the cron worker and
// the admin HTTP trigger drive the same sweep, so repeated runs over the same
// window stay idempotent.
type CleanupService struct {
	repo      *Repository
	cartRepo  *cart.Repository
	inventory *inventory.Repository
	tx        txRunner
	cfg       config.CleanupConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewCleanupService builds the abandoned-order reclaimer.
func NewCleanupService(repo *Repository, cartRepo *cart.Repository, inv *inventory.Repository, tx txRunner, cfg config.CleanupConfig, logg *logger.Logger) (*CleanupService, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &CleanupService{
		repo:      repo,
		cartRepo:  cartRepo,
		inventory: inv,
		tx:        tx,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// SweepAbandonedOrders finds pending orders past the age cutoff that never saw
// a payment and, when executing, deletes them one transaction at a time so a
// failure mid-sweep leaves every already-deleted order fully reclaimed.
func (s *CleanupService) SweepAbandonedOrders(ctx context.Context, input SweepInput) (*SweepResult, error) {
	hours := input.OlderThanHours
	if hours <= 0 {
		hours = s.cfg.AbandonedOrderMaxAgeHours()
	}
	cutoff := s.now().UTC().Add(-time.Duration(hours) * time.Hour)

	result := &SweepResult{
		DryRun:         !input.Execute,
		OlderThanHours: hours,
	}

	if input.Quick && !input.Execute {
		count, err := s.repo.CountAbandoned(ctx, cutoff, input.EventYearID)
		if err != nil {
			return nil, err
		}
		result.FoundOrders = int(count)
		return result, nil
	}

	stale, err := s.repo.ListAbandoned(ctx, cutoff, input.EventYearID)
	if err != nil {
		return nil, err
	}
	result.FoundOrders = len(stale)

	if !input.Execute {
		return result, nil
	}

	var errs error
	for _, order := range stale {
		released := 0
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			released = 0
			txRepo := s.repo.WithTx(tx)
			txLedger := s.inventory.WithTx(tx)

			if s.cfg.ReleaseOrderInventory {
				for _, item := range order.Items {
					if err := txLedger.Release(ctx, item.ProductID, item.Quantity); err != nil {
						return err
					}
					released += item.Quantity
				}
			}
			return txRepo.Delete(ctx, order.ID)
		})
		if err != nil {
			// Each order reclaims in its own transaction; a bad one rolls
			// itself back and the sweep moves on to the rest.
			errs = multierr.Append(errs, fmt.Errorf("reclaim order %s: %w", order.ID, err))
			continue
		}
		result.DeletedOrders++
		result.ReleasedUnits += released
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"found":   result.FoundOrders,
			"deleted": result.DeletedOrders,
			"units":   result.ReleasedUnits,
			"failed":  len(multierr.Errors(errs)),
		})
		s.logg.Info(logCtx, "abandoned order sweep complete")
	}
	return result, errs
}

// CartHealthSnapshot tallies live and expired cart sessions.
func (s *CleanupService) CartHealthSnapshot(ctx context.Context) (*CartHealth, error) {
	live, expired, err := s.cartRepo.CountByLiveness(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return &CartHealth{ActiveCarts: live, ExpiredCarts: expired}, nil
}
