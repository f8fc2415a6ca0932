package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Order is the buyer-facing purchase record. Vendor-scoped views are derived
// projections over the line items, never a second persisted entity.
type Order struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status           enums.OrderStatus        `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus    enums.OrderPaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	PaymentReference *string                  `gorm:"column:payment_reference"`
	TotalAmount      types.Money              `gorm:"column:total_amount;type:numeric(14,2);not null"`
	ShippingAddress  types.Address            `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Notes            *string                  `gorm:"column:notes"`
	ConfirmedAt      *time.Time               `gorm:"column:confirmed_at"`
	CancelledAt      *time.Time               `gorm:"column:cancelled_at"`
	DeliveredAt      *time.Time               `gorm:"column:delivered_at"`
	Items            []OrderLineItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLineItem snapshots one product line at order-creation time.
type OrderLineItem struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID   `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	VendorID  uuid.UUID   `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name      string      `gorm:"column:name;not null"`
	Quantity  int         `gorm:"column:quantity;not null"`
	UnitPrice types.Money `gorm:"column:unit_price;type:numeric(14,2);not null"`
	LineTotal types.Money `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
