package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one product line inside a cart session. Lines keep insertion
// order through CreatedAt.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
