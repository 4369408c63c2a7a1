// internal/inventory/repository.go
package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
)

// Availability is the point-in-time ledger reading for one product.
// Remaining is nil when capacity is unbounded.
type Availability struct {
	ProductID      uuid.UUID `json:"productId"`
	TotalInventory *int      `json:"totalInventory"`
	ReservedCount  int       `json:"reservedCount"`
	Remaining      *int      `json:"remaining"`
}

// Repository owns the product reservation ledger. All quantity mutations go
// through single conditional UPDATE statements so concurrent writers never
// oversell a bounded product.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProduct loads the product without associations.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// Reserve atomically holds qty units of the product. The guard clause rejects
// the whole statement when the hold would push reserved_count past
// total_inventory; a NULL total_inventory means unbounded capacity.
func (r *Repository) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET reserved_count = reserved_count + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		  AND (total_inventory IS NULL OR reserved_count + ? <= total_inventory)
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindProduct(ctx, productID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "product is sold out")
	}
	return nil
}

// Release returns qty units to the ledger, flooring at zero so a double
// release never drives the count negative.
func (r *Repository) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET reserved_count = CASE
				WHEN reserved_count >= ? THEN reserved_count - ?
				ELSE 0
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}

// GetAvailability reads the current ledger state for a product.
func (r *Repository) GetAvailability(ctx context.Context, productID uuid.UUID) (*Availability, error) {
	product, err := r.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	avail := &Availability{
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
	return avail, nil
}

// ListActiveProducts returns the active products for one event year ordered
// by name.
func (r *Repository) ListActiveProducts(ctx context.Context, eventYearID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("event_year_id = ? AND is_active = ?", eventYearID, true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active products")
	}
	return products, nil
}

// SumCommittedQuantity totals the units the organization already holds for a
// product across live carts and non-terminal orders. Used by quota checks.
func (r *Repository) SumCommittedQuantity(ctx context.Context, orgID, productID uuid.UUID) (int, error) {
	var total int64

	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.organization_id = ?", orgID).
		Where("order_items.product_id = ?", productID).
		Where("orders.status NOT IN ?", []string{"cancelled", "refunded"}).
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ordered quantity")
	}
	return int(total), nil
}
