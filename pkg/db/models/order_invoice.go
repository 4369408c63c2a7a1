package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
)

// OrderInvoice is the billing document attached to an order, used for
// sponsorships and organizations that require formal invoicing.
// PaidCents + BalanceOwedCents == TotalCents at all times.
type OrderInvoice struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	InvoiceNumber    string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	PaidCents        int                 `gorm:"column:paid_cents;not null;default:0"`
	BalanceOwedCents int                 `gorm:"column:balance_owed_cents;not null"`
	Status           enums.InvoiceStatus `gorm:"column:status;not null;default:'unsent'"`
	SentAt           *time.Time          `gorm:"column:sent_at"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
