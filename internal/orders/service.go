package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/audit"
	"github.com/sokohub-labs/sokohub-backend/internal/cart"
	"github.com/sokohub-labs/sokohub-backend/internal/catalog"
	"github.com/sokohub-labs/sokohub-backend/internal/inventory"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	"github.com/sokohub-labs/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/pagination"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	GetVendorView(ctx context.Context, actor Actor, orderID uuid.UUID) (*VendorOrderView, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) error
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo     Repository
	cartRepo cart.Repository
	catalog  catalog.Repository
	ledger   inventory.Ledger
	tx       txRunner
	audit    audit.Recorder
}

// NewService builds the order service with its required dependencies.
func NewService(repo Repository, cartRepo cart.Repository, catalogRepo catalog.Repository, ledger inventory.Ledger, tx txRunner, auditor audit.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		repo:     repo,
		cartRepo: cartRepo,
		catalog:  catalogRepo,
		ledger:   ledger,
		tx:       tx,
		audit:    auditor,
	}, nil
}

// Create converts the buyer's cart (or an explicit item list) into a pending
// order. Inventory re-validation, per-line decrement, price snapshotting, and
// cart emptying all commit or roll back together.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if msg := input.ShippingAddress.Validate(); msg != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each line needs a product id and a positive quantity")
		}
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		lines := input.Items
		var sourceCart *models.Cart

		if len(lines) == 0 {
			found, err := s.cartRepo.WithTx(tx).FindByBuyer(ctx, input.BuyerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			if len(found.Items) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			sourceCart = found
			for _, item := range found.Items {
				lines = append(lines, OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
			}
		}

		catalogRepo := s.catalog.WithTx(tx)
		total := types.MoneyFromInt(0)
		lineItems := make([]models.OrderLineItem, 0, len(lines))

		for _, line := range lines {
			product, err := catalogRepo.FindByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": line.ProductID.String()})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeConflict, "product unavailable").
					WithDetails(map[string]any{"product_id": product.ID.String()})
			}

			if err := s.ledger.Reserve(ctx, tx, product.ID, line.Quantity); err != nil {
				return err
			}

			lineTotal := types.LineTotal(product.UnitPrice, line.Quantity)
			total = total.Add(lineTotal)
			lineItems = append(lineItems, models.OrderLineItem{
				ProductID: product.ID,
				VendorID:  product.VendorID,
				Name:      product.Name,
				Quantity:  line.Quantity,
				UnitPrice: product.UnitPrice,
				LineTotal: lineTotal,
			})
		}

		order := &models.Order{
			BuyerID:         input.BuyerID,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.OrderPaymentStatusUnpaid,
			TotalAmount:     total,
			ShippingAddress: input.ShippingAddress,
			Notes:           input.Notes,
			Items:           lineItems,
		}
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		created = order

		if sourceCart != nil {
			if err := s.cartRepo.WithTx(tx).DeleteItems(ctx, sourceCart.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "order.created",
		Category:  enums.AuditCategoryOrder,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   &input.BuyerID,
		TargetID:  created.ID.String(),
		Data: map[string]any{
			"total_amount": created.TotalAmount.StringFixed(2),
			"line_count":   len(created.Items),
		},
	})
	return created, nil
}

// GetOrder returns the full order for its buyer or an admin.
func (s *service) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.RoleAdmin && order.BuyerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

// GetVendorView returns the vendor-scoped projection: only the caller's
// lines and their subtotal.
func (s *service) GetVendorView(ctx context.Context, actor Actor, orderID uuid.UUID) (*VendorOrderView, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	view := ProjectVendorView(order, actor.UserID)
	if len(view.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order has no lines for this vendor")
	}
	return view, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	list, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// UpdateStatus moves an order forward (confirmed, processing). Vendors must
// own at least one line; admins may move any order. Cancellation has its own
// path because of the inventory restore.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) error {
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if target == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeValidation, "use the cancel operation to cancel an order")
	}

	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadWith(ctx, repo, orderID)
		if err != nil {
			return err
		}

		switch actor.Role {
		case enums.RoleAdmin:
		case enums.RoleVendor:
			owns, err := repo.VendorHasLines(ctx, order.ID, actor.UserID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check vendor lines")
			}
			if !owns {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order has no lines for this vendor")
			}
		default:
			return pkgerrors.New(pkgerrors.CodeForbidden, "only vendors and admins can move orders forward")
		}

		if !CanTransition(order.Status, target) {
			return invalidTransition(order.Status, target)
		}
		from = order.Status

		updates := map[string]any{"status": target}
		if target == enums.OrderStatusConfirmed {
			updates["confirmed_at"] = time.Now().UTC()
		}
		if target == enums.OrderStatusDelivered {
			updates["delivered_at"] = time.Now().UTC()
		}
		return repo.Update(ctx, order.ID, updates)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "order.status_changed",
		Category:  enums.AuditCategoryOrder,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   &actor.UserID,
		TargetID:  orderID.String(),
		Data:      map[string]any{"from": from.String(), "to": target.String()},
	})
	return nil
}

// Cancel moves a non-terminal order to cancelled, restores inventory for
// every line, and closes any open payment attempts in the same transaction.
func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) error {
	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadWith(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if actor.Role != enums.RoleAdmin && order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		if !CanTransition(order.Status, enums.OrderStatusCancelled) {
			return invalidTransition(order.Status, enums.OrderStatusCancelled)
		}
		from = order.Status

		for _, item := range order.Items {
			if err := s.ledger.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := repo.CancelOpenPayments(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel open payments")
		}
		return repo.Update(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		EventType: "order.cancelled",
		Category:  enums.AuditCategoryOrder,
		Severity:  enums.AuditSeverityInfo,
		ActorID:   &actor.UserID,
		TargetID:  orderID.String(),
		Data:      map[string]any{"from": from.String(), "reason": reason},
	})
	return nil
}

// MarkDelivered completes an order when its delivery lands. Runs inside the
// delivery's transaction. Vendors sometimes lag on confirm/process, so the
// order walks the remaining edges of the transition table one at a time;
// cancelled and delivered stay put.
func (s *service) MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	order, err := s.loadWith(ctx, repo, orderID)
	if err != nil {
		return err
	}

	path, ok := pathToDelivered(order.Status)
	if !ok {
		return invalidTransition(order.Status, enums.OrderStatusDelivered)
	}

	for _, next := range path {
		updates := map[string]any{"status": next}
		if next == enums.OrderStatusDelivered {
			updates["delivered_at"] = time.Now().UTC()
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.loadWith(ctx, s.repo, orderID)
}

func (s *service) loadWith(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
