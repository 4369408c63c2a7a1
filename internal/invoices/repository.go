// internal/invoices/repository.go
package invoices

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
)

// Repository exposes persistence operations for order invoices.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an invoice repository bound to the provided DB.
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

// FindByOrderID loads the invoice attached to the order.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderInvoice, error) {
	var invoice models.OrderInvoice
	err := r.db.WithContext(ctx).First(&invoice, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return &invoice, nil
}

// Create inserts the invoice.
func (r *Repository) Create(ctx context.Context, invoice *models.OrderInvoice) (*models.OrderInvoice, error) {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	return invoice, nil
}

// Update persists invoice field changes via a column map.
func (r *Repository) Update(ctx context.Context, invoiceID uuid.UUID, updates map[string]any) error {
	err := r.db.WithContext(ctx).
		Model(&models.OrderInvoice{}).
		Where("id = ?", invoiceID).
		Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice")
	}
	return nil
}

// FindEventYear loads one event year record.
func (r *Repository) FindEventYear(ctx context.Context, id uuid.UUID) (*models.EventYear, error) {
	var year models.EventYear
	err := r.db.WithContext(ctx).First(&year, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event year not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event year")
	}
	return &year, nil
}

// ListOrgAdmins returns the organization's admin members, the billing
// recipients for invoice delivery.
func (r *Repository) ListOrgAdmins(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationMember, error) {
	var members []models.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND role = ?", orgID, enums.MemberRoleAdmin).
		Order("email ASC").
		Find(&members).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list organization admins")
	}
	return members, nil
}
