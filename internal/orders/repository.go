// internal/orders/repository.go
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
)

// Repository exposes persistence operations for orders and payments.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the order with its lines, payments and invoice.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Invoice").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

// ListByOrg returns the organization's orders, newest first. EventYearID
// narrows the listing when set.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID, eventYearID *uuid.UUID) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("organization_id = ?", orgID).
		Order("created_at DESC")
	if eventYearID != nil {
		query = query.Where("event_year_id = ?", *eventYearID)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

// Create inserts the order with its lines.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// Update persists order field changes via a column map so untouched fields
// keep their stored values.
func (r *Repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return nil
}

// CreatePayment inserts one collected payment row.
func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return payment, nil
}

// NextOrderNumber hands out the next sequential order number for the event
// year. Callers run it inside the order-creation transaction so concurrent
// checkouts cannot mint the same number twice; the unique index on
// (event_year_id, order_number) backstops any race.
func (r *Repository) NextOrderNumber(ctx context.Context, eventYearID uuid.UUID) (int64, error) {
	var max int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(MAX(order_number), 0)").
		Where("event_year_id = ?", eventYearID).
		Scan(&max).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next order number")
	}
	return max + 1, nil
}

// ListAbandoned returns pending orders older than cutoff that have never seen
// a payment. EventYearID narrows the sweep when set.
func (r *Repository) ListAbandoned(ctx context.Context, cutoff time.Time, eventYearID *uuid.UUID) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ?", "pending").
		Where("balance_owed_cents = total_cents").
		Where("created_at < ?", cutoff).
		Order("created_at ASC")
	if eventYearID != nil {
		query = query.Where("event_year_id = ?", *eventYearID)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list abandoned orders")
	}
	return rows, nil
}

// CountAbandoned is the cheap variant of ListAbandoned used by quick sweeps.
func (r *Repository) CountAbandoned(ctx context.Context, cutoff time.Time, eventYearID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", "pending").
		Where("balance_owed_cents = total_cents").
		Where("created_at < ?", cutoff)
	if eventYearID != nil {
		query = query.Where("event_year_id = ?", *eventYearID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count abandoned orders")
	}
	return count, nil
}

// Delete removes the order with its dependents. Child rows are deleted
// explicitly so the repository behaves the same against test databases
// without foreign-key cascades.
func (r *Repository) Delete(ctx context.Context, orderID uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order items")
	}
	if err := conn.Where("order_id = ?", orderID).Delete(&models.Payment{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order payments")
	}
	if err := conn.Where("order_id = ?", orderID).Delete(&models.OrderInvoice{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order invoice")
	}
	if err := conn.Where("id = ?", orderID).Delete(&models.Order{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
	}
	return nil
}
