package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Cart is the per-buyer mutable item collection. Created lazily on first
// access and never deleted; checkout empties it instead.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem holds one product line with the unit price snapshotted at add time.
type CartItem struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID   `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:uniq_cart_items_cart_product,priority:1"`
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uniq_cart_items_cart_product,priority:2"`
	VendorID  uuid.UUID   `gorm:"column:vendor_id;type:uuid;not null"`
	Quantity  int         `gorm:"column:quantity;not null"`
	UnitPrice types.Money `gorm:"column:unit_price;type:numeric(14,2);not null"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
