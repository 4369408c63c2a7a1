package models

import (
	"time"

	"github.com/google/uuid"
)

// CartSession is an organization's in-progress selection for one event year.
// Every mutation slides ExpiresAt forward; the reclaimer deletes sessions past
// their expiry and returns their reserved units to the inventory ledger.
type CartSession struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID  `gorm:"column:organization_id;type:uuid;not null;index"`
	EventYearID    uuid.UUID  `gorm:"column:event_year_id;type:uuid;not null"`
	ExpiresAt      time.Time  `gorm:"column:expires_at;not null;index"`
	Items          []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
