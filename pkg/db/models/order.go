package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
	"github.com/sportsfesthq/sportsfest-backend/pkg/types"
)

// Order is a durable purchase record produced from a cart session or created
// directly for sponsorships.
//
// BalanceOwedCents is derived: TotalCents minus the sum of recorded payments.
// A pending order with BalanceOwedCents == TotalCents has seen no payment
// activity; the abandoned-order sweep keys off that equality.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      int64             `gorm:"column:order_number;not null"`
	OrganizationID   uuid.UUID         `gorm:"column:organization_id;type:uuid;not null;index"`
	EventYearID      uuid.UUID         `gorm:"column:event_year_id;type:uuid;not null;index"`
	Status           enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalCents       int               `gorm:"column:total_cents;not null"`
	DepositCents     int               `gorm:"column:deposit_cents;not null;default:0"`
	BalanceOwedCents int               `gorm:"column:balance_owed_cents;not null"`
	IsSponsorship    bool              `gorm:"column:is_sponsorship;not null;default:false"`
	Metadata         *types.JSONMap    `gorm:"column:metadata;type:jsonb;serializer:json"`
	Notes            *string           `gorm:"column:notes"`
	CancelledAt      *time.Time        `gorm:"column:cancelled_at"`
	RefundedAt       *time.Time        `gorm:"column:refunded_at"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments         []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Invoice          *OrderInvoice     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
