package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
)

// Product is a purchasable SKU scoped to one event year.
//
// TotalInventory nil means unbounded capacity. ReservedCount counts units held
// by live carts plus units committed to orders; it never exceeds
// TotalInventory when capacity is bounded and never goes below zero.
type Product struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	EventYearID       uuid.UUID         `gorm:"column:event_year_id;type:uuid;not null;index"`
	Name              string            `gorm:"column:name;not null"`
	Type              enums.ProductType `gorm:"column:type;not null"`
	PriceCents        int               `gorm:"column:price_cents;not null"`
	DepositCents      *int              `gorm:"column:deposit_cents"`
	MaxQuantityPerOrg *int              `gorm:"column:max_quantity_per_org"`
	TotalInventory    *int              `gorm:"column:total_inventory"`
	ReservedCount     int               `gorm:"column:reserved_count;not null;default:0"`
	IsActive          bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
