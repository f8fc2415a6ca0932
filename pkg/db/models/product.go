package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Product is the catalog listing this core reads prices and inventory from.
// Catalog CRUD itself lives outside the pipeline; order creation and cart
// mutation are the only writers of the inventory columns.
type Product struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	VendorID       uuid.UUID   `gorm:"column:vendor_id;type:uuid;not null"`
	Name           string      `gorm:"column:name;not null"`
	UnitPrice      types.Money `gorm:"column:unit_price;type:numeric(14,2);not null"`
	IsActive       bool        `gorm:"column:is_active;not null"`
	TrackInventory bool        `gorm:"column:track_inventory;not null"`
	AllowBackorder bool        `gorm:"column:allow_backorder;not null;default:false"`
	AvailableQty   int         `gorm:"column:available_qty;not null;default:0"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
