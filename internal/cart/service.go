// internal/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/internal/inventory"
	"github.com/sportsfesthq/sportsfest-backend/pkg/config"
	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledger interface {
	WithTx(tx *gorm.DB) *inventory.Repository
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes cart session operations. A cart holds real inventory: every
// quantity change moves units on the product ledger inside one transaction.
type Service interface {
	GetCart(ctx context.Context, orgID, eventYearID uuid.UUID) (*Snapshot, error)
	SetItemQuantity(ctx context.Context, input SetItemInput) (*Snapshot, error)
	RemoveItem(ctx context.Context, orgID, eventYearID, productID uuid.UUID) (*Snapshot, error)
	ClearCart(ctx context.Context, orgID, eventYearID uuid.UUID) error
}

// SetItemInput sets the absolute quantity for one product line.
type SetItemInput struct {
	OrganizationID uuid.UUID
	EventYearID    uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
}

// Line is one product line in a snapshot.
type Line struct {
	ProductID      uuid.UUID `json:"productId"`
	ProductName    string    `json:"productName"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unitPriceCents"`
	LineTotalCents int       `json:"lineTotalCents"`
}

// Snapshot is the read model returned by every cart operation.
type Snapshot struct {
	CartID         uuid.UUID `json:"cartId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	EventYearID    uuid.UUID `json:"eventYearId"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Items          []Line    `json:"items"`
	SubtotalCents  int       `json:"subtotalCents"`
}

type service struct {
	repo      *Repository
	inventory ledger
	tx        txRunner
	cfg       config.CartConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, inv ledger, tx txRunner, cfg config.CartConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("cart session ttl must be positive")
	}
	return &service{
		repo:      repo,
		inventory: inv,
		tx:        tx,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// GetCart returns the live cart, or an empty snapshot when none exists. An
// expired cart that the reclaimer has not swept yet reads as absent.
func (s *service) GetCart(ctx context.Context, orgID, eventYearID uuid.UUID) (*Snapshot, error) {
	if orgID == uuid.Nil || eventYearID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id and event year id are required")
	}

	session, err := s.repo.FindLiveByOrg(ctx, orgID, eventYearID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Snapshot{OrganizationID: orgID, EventYearID: eventYearID, Items: []Line{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.buildSnapshot(ctx, session)
}

// SetItemQuantity sets the absolute quantity of one product line, reserving or
// releasing the difference on the ledger atomically with the line write.
func (s *service) SetItemQuantity(ctx context.Context, input SetItemInput) (*Snapshot, error) {
	if input.OrganizationID == uuid.Nil || input.EventYearID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id, event year id and product id are required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.Quantity == 0 {
		// Zero is an absolute quantity like any other: the line goes away and
		// its hold returns to the ledger.
		snapshot, err := s.RemoveItem(ctx, input.OrganizationID, input.EventYearID, input.ProductID)
		if err != nil {
			if perr := pkgerrors.As(err); perr != nil && perr.Code() == pkgerrors.CodeNotFound {
				return s.GetCart(ctx, input.OrganizationID, input.EventYearID)
			}
			return nil, err
		}
		return snapshot, nil
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txLedger := s.inventory.WithTx(tx)
		now := s.now()

		product, err := txLedger.FindProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
		}
		if product.EventYearID != input.EventYearID {
			return pkgerrors.New(pkgerrors.CodeValidation, "product does not belong to this event year")
		}

		session, err := s.findOrCreateSession(ctx, txRepo, input.OrganizationID, input.EventYearID, now)
		if err != nil {
			return err
		}
		cartID = session.ID

		current := 0
		line, err := txRepo.GetItem(ctx, session.ID, input.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if line != nil {
			current = line.Quantity
		}

		if err := s.checkQuota(ctx, tx, product, input.OrganizationID, input.Quantity, current, now); err != nil {
			return err
		}

		delta := input.Quantity - current
		switch {
		case delta > 0:
			if err := txLedger.Reserve(ctx, product.ID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := txLedger.Release(ctx, product.ID, -delta); err != nil {
				return err
			}
		}

		if line == nil {
			line = &models.CartItem{CartID: session.ID, ProductID: product.ID}
		}
		line.Quantity = input.Quantity
		if err := txRepo.SaveItem(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
		}

		return txRepo.Touch(ctx, session.ID, now.Add(s.cfg.SessionTTL))
	})
	if err != nil {
		return nil, err
	}

	return s.snapshotByID(ctx, cartID)
}

// RemoveItem drops one line and returns its units to the ledger.
func (s *service) RemoveItem(ctx context.Context, orgID, eventYearID, productID uuid.UUID) (*Snapshot, error) {
	if orgID == uuid.Nil || eventYearID == uuid.Nil || productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id, event year id and product id are required")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		now := s.now()

		session, err := txRepo.FindLiveByOrg(ctx, orgID, eventYearID, now)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		cartID = session.ID

		line, err := txRepo.GetItem(ctx, session.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		if err := s.inventory.WithTx(tx).Release(ctx, productID, line.Quantity); err != nil {
			return err
		}
		if err := txRepo.DeleteItem(ctx, session.ID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}

		return txRepo.Touch(ctx, session.ID, now.Add(s.cfg.SessionTTL))
	})
	if err != nil {
		return nil, err
	}

	return s.snapshotByID(ctx, cartID)
}

// ClearCart releases every line and deletes the session.
func (s *service) ClearCart(ctx context.Context, orgID, eventYearID uuid.UUID) error {
	if orgID == uuid.Nil || eventYearID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "organization id and event year id are required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		session, err := txRepo.FindLiveByOrg(ctx, orgID, eventYearID, s.now())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		txLedger := s.inventory.WithTx(tx)
		for _, line := range session.Items {
			if err := txLedger.Release(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		if err := txRepo.DeleteItemsByCart(ctx, session.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart lines")
		}
		if _, err := txRepo.DeleteCart(ctx, session.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithOrganizationID(ctx, orgID.String()), "cart cleared")
		}
		return nil
	})
}

func (s *service) findOrCreateSession(ctx context.Context, repo *Repository, orgID, eventYearID uuid.UUID, now time.Time) (*models.CartSession, error) {
	session, err := repo.FindLiveByOrg(ctx, orgID, eventYearID, now)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	session = &models.CartSession{
		OrganizationID: orgID,
		EventYearID:    eventYearID,
		ExpiresAt:      now.Add(s.cfg.SessionTTL),
	}
	if _, err := repo.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return session, nil
}

// checkQuota enforces the per-organization purchase cap: the desired cart
// quantity plus units already committed to live orders must stay within
// MaxQuantityPerOrg.
// checkQuota totals the desired quantity, the organization's other live cart
// holdings of the product, and units already committed to orders against the
// per-org cap. currentQty is the line being rewritten, so it is excluded from
// the live cart total.
func (s *service) checkQuota(ctx context.Context, tx *gorm.DB, product *models.Product, orgID uuid.UUID, desiredQty, currentQty int, now time.Time) error {
	if product.MaxQuantityPerOrg == nil {
		return nil
	}

	ordered, err := s.inventory.WithTx(tx).SumCommittedQuantity(ctx, orgID, product.ID)
	if err != nil {
		return err
	}
	inCarts, err := s.repo.WithTx(tx).SumLiveCartQuantity(ctx, orgID, product.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum cart holdings")
	}
	otherCarts := inCarts - currentQty
	if otherCarts < 0 {
		otherCarts = 0
	}
	if desiredQty+otherCarts+ordered > *product.MaxQuantityPerOrg {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "purchase limit reached for this product")
	}
	return nil
}

func (s *service) snapshotByID(ctx context.Context, cartID uuid.UUID) (*Snapshot, error) {
	session, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.buildSnapshot(ctx, session)
}

func (s *service) buildSnapshot(ctx context.Context, session *models.CartSession) (*Snapshot, error) {
	snapshot := &Snapshot{
		CartID:         session.ID,
		OrganizationID: session.OrganizationID,
		EventYearID:    session.EventYearID,
		ExpiresAt:      session.ExpiresAt,
		Items:          make([]Line, 0, len(session.Items)),
	}

	for _, item := range session.Items {
		product, err := s.inventory.FindProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		line := Line{
			ProductID:      item.ProductID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: product.PriceCents * item.Quantity,
		}
		snapshot.Items = append(snapshot.Items, line)
		snapshot.SubtotalCents += line.LineTotalCents
	}
	return snapshot, nil
}
