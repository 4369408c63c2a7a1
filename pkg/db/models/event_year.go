package models

import (
	"time"

	"github.com/google/uuid"
)

// EventYear scopes products and orders to one annual edition of the event.
type EventYear struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Year      int       `gorm:"column:year;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
