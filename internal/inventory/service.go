// internal/inventory/service.go
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
)

// Service exposes ledger reads and capacity-safe holds to the rest of the
// system. Quantity mutations inside multi-step flows run through WithTx so the
// caller's transaction carries them.
type Service interface {
	GetAvailability(ctx context.Context, productID uuid.UUID) (*Availability, error)
	ListAvailability(ctx context.Context, eventYearID uuid.UUID) ([]Availability, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type ledgerRepository interface {
	WithTx(tx *gorm.DB) *Repository
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Reserve(ctx context.Context, productID uuid.UUID, qty int) error
	Release(ctx context.Context, productID uuid.UUID, qty int) error
	GetAvailability(ctx context.Context, productID uuid.UUID) (*Availability, error)
}

type productLister interface {
	ListActiveProducts(ctx context.Context, eventYearID uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo   ledgerRepository
	lister productLister
}

func NewService(repo ledgerRepository, lister productLister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if lister == nil {
		return nil, fmt.Errorf("product lister required")
	}
	return &service{repo: repo, lister: lister}, nil
}

func (s *service) GetAvailability(ctx context.Context, productID uuid.UUID) (*Availability, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.GetAvailability(ctx, productID)
}

func (s *service) ListAvailability(ctx context.Context, eventYearID uuid.UUID) ([]Availability, error) {
	if eventYearID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event year id is required")
	}
	products, err := s.lister.ListActiveProducts(ctx, eventYearID)
	if err != nil {
		return nil, err
	}

	out := make([]Availability, 0, len(products))
	for _, product := range products {
		avail := Availability{
			ProductID:      product.ID,
			TotalInventory: product.TotalInventory,
			ReservedCount:  product.ReservedCount,
		}
		if product.TotalInventory != nil {
			remaining := *product.TotalInventory - product.ReservedCount
			if remaining < 0 {
				remaining = 0
			}
			avail.Remaining = &remaining
		}
		out = append(out, avail)
	}
	return out, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	return s.repo.WithTx(tx).Reserve(ctx, productID, qty)
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}
	return s.repo.WithTx(tx).Release(ctx, productID, qty)
}
