// internal/cart/repository.go
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsfesthq/sportsfest-backend/pkg/db/models"
)

// Repository exposes persistence operations for cart sessions and lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// FindLiveByOrg loads the organization's unexpired cart for the event year.
func (r *Repository) FindLiveByOrg(ctx context.Context, orgID, eventYearID uuid.UUID, now time.Time) (*models.CartSession, error) {
	var session models.CartSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("organization_id = ? AND event_year_id = ? AND expires_at > ?", orgID, eventYearID, now).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByID loads a cart session with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CartSession, error) {
	var session models.CartSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new cart session.
func (r *Repository) Create(ctx context.Context, session *models.CartSession) (*models.CartSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Touch slides the session expiry forward.
func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartSession{}).
		Where("id = ?", cartID).
		Update("expires_at", expiresAt).Error
}

// GetItem returns the cart line for the product, or gorm.ErrRecordNotFound.
func (r *Repository) GetItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveItem inserts or updates a cart line.
func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
		return r.db.WithContext(ctx).Create(item).Error
	}
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem removes one cart line.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{}).Error
}

// DeleteItemsByCart removes all lines for a cart.
func (r *Repository) DeleteItemsByCart(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// DeleteCart removes the session row and reports how many rows went away.
// Zero means another writer already claimed the cart; callers racing the
// expiry sweep use that to back off. Lines cascade at the database level;
// callers running against test databases delete lines explicitly first.
func (r *Repository) DeleteCart(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ?", cartID).
		Delete(&models.CartSession{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListExpired returns sessions whose expiry has passed, oldest first.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]models.CartSession, error) {
	var sessions []models.CartSession
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountByLiveness tallies live and expired sessions in one pass.
func (r *Repository) CountByLiveness(ctx context.Context, now time.Time) (live int64, expired int64, err error) {
	if err = r.db.WithContext(ctx).
		Model(&models.CartSession{}).
		Where("expires_at > ?", now).
		Count(&live).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).
		Model(&models.CartSession{}).
		Where("expires_at <= ?", now).
		Count(&expired).Error; err != nil {
		return 0, 0, err
	}
	return live, expired, nil
}

// SumLiveCartQuantity totals the units the organization currently holds for a
// product across unexpired carts.
func (r *Repository) SumLiveCartQuantity(ctx context.Context, orgID, productID uuid.UUID, now time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Select("COALESCE(SUM(cart_items.quantity), 0)").
		Joins("JOIN cart_sessions ON cart_sessions.id = cart_items.cart_id").
		Where("cart_sessions.organization_id = ?", orgID).
		Where("cart_items.product_id = ?", productID).
		Where("cart_sessions.expires_at > ?", now).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}
