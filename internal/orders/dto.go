package orders

import (
	"github.com/google/uuid"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Actor identifies the caller for role-scoped authorization.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// OrderItemInput is one explicit line when an order bypasses the cart.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput carries everything order creation needs. Items empty
// means convert the buyer's cart.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	Items           []OrderItemInput
	ShippingAddress types.Address
	Notes           *string
}

// OrderList is one page of a buyer's orders plus the follow-up cursor.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// VendorOrderView is the vendor-scoped projection of an order: only the
// vendor's own lines and their subtotal. Computed, never persisted.
type VendorOrderView struct {
	OrderID       uuid.UUID                `json:"order_id"`
	Status        enums.OrderStatus        `json:"status"`
	PaymentStatus enums.OrderPaymentStatus `json:"payment_status"`
	Items         []models.OrderLineItem   `json:"items"`
	Subtotal      types.Money              `json:"subtotal"`
	CreatedAt     string                   `json:"created_at"`
}

// ProjectVendorView filters an order down to one vendor's lines.
func ProjectVendorView(order *models.Order, vendorID uuid.UUID) *VendorOrderView {
	view := &VendorOrderView{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Subtotal:      types.MoneyFromInt(0),
		CreatedAt:     order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, item := range order.Items {
		if item.VendorID != vendorID {
			continue
		}
		view.Items = append(view.Items, item)
		view.Subtotal = view.Subtotal.Add(item.LineTotal)
	}
	return view
}
