package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment records one collected amount against an order. The running sum of
// payments plus the order's balance always reconciles with its total.
type Payment struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	IsDeposit   bool      `gorm:"column:is_deposit;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
