package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sportsfesthq/sportsfest-backend/pkg/enums"
)

// Organization is a registered company participating in the event.
type Organization struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name      string               `gorm:"column:name;not null"`
	Members   []OrganizationMember `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrganizationMember is a contact within an organization. Admin members
// receive invoice notifications.
type OrganizationMember struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID uuid.UUID        `gorm:"column:organization_id;type:uuid;not null"`
	Email          string           `gorm:"column:email;not null"`
	FullName       string           `gorm:"column:full_name;not null"`
	Role           enums.MemberRole `gorm:"column:role;not null;default:'member'"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
}
