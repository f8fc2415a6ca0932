package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
)

// User is the local projection of the identity service: role plus
// active/suspended state. Onboarding and credentials live elsewhere.
type User struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Role      enums.Role          `gorm:"column:role;not null"`
	Status    enums.AccountStatus `gorm:"column:status;not null;default:'active'"`
	Name      string              `gorm:"column:name;not null"`
	Phone     *string             `gorm:"column:phone"`
	Email     *string             `gorm:"column:email"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
