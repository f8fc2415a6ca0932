package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Delivery tracks the physical leg of a paid order. DriverID stays null until
// assignment; a failed delivery clears it and re-queues as pending.
type Delivery struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DriverID        *uuid.UUID           `gorm:"column:driver_id;type:uuid;index"`
	Status          enums.DeliveryStatus `gorm:"column:status;not null;default:'pending'"`
	DeliveryAddress types.Address        `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	DeliveryFee     types.Money          `gorm:"column:delivery_fee;type:numeric(14,2);not null;default:0"`
	DriverEarnings  types.Money          `gorm:"column:driver_earnings;type:numeric(14,2);not null;default:0"`
	ProofSignature  *string              `gorm:"column:proof_signature"`
	ProofPhotoURL   *string              `gorm:"column:proof_photo_url"`
	ProofNotes      *string              `gorm:"column:proof_notes"`
	AssignedAt      *time.Time           `gorm:"column:assigned_at"`
	PickupTime      *time.Time           `gorm:"column:pickup_time"`
	DeliveryTime    *time.Time           `gorm:"column:delivery_time"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Delivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
