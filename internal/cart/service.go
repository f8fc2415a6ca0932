package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/catalog"
	"github.com/sokohub-labs/sokohub-backend/pkg/db"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CheckoutIssue describes one line that would fail order creation.
type CheckoutIssue struct {
	ItemID    uuid.UUID `json:"item_id"`
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}

// CheckoutValidation is the read-only result of validateForCheckout. A race
// between this check and order creation is possible; order creation
// re-validates atomically, so this is advisory.
type CheckoutValidation struct {
	Valid  bool            `json:"valid"`
	Issues []CheckoutIssue `json:"issues"`
}

// Service defines buyer cart operations.
type Service interface {
	GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*models.Cart, error)
	UpdateItem(ctx context.Context, buyerID, itemID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, buyerID, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
	ValidateForCheckout(ctx context.Context, buyerID uuid.UUID) (*CheckoutValidation, error)
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
}

// NewService builds the cart service with its required dependencies.
func NewService(repo Repository, catalogRepo catalog.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, catalog: catalogRepo, tx: tx}, nil
}

// GetCart returns the buyer's cart, creating it lazily on first access.
func (s *service) GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	cart, err := s.repo.FindByBuyer(ctx, buyerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{BuyerID: buyerID})
	if err != nil {
		// A concurrent first access may have won the unique buyer_id race.
		if existing, ferr := s.repo.FindByBuyer(ctx, buyerID); ferr == nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*models.Cart, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := s.catalog.WithTx(tx).FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "product unavailable")
		}

		if product.TrackInventory && !product.AllowBackorder {
			// Re-read the cart inside the transaction so the cap check sees
			// lines added concurrently since GetCart.
			current, err := repo.FindByBuyer(ctx, buyerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
			existing := 0
			for _, item := range current.Items {
				if item.ProductID == productID {
					existing = item.Quantity
				}
			}
			if existing+qty > product.AvailableQty {
				return pkgerrors.New(pkgerrors.CodeInsufficientResource, "insufficient inventory").
					WithDetails(map[string]any{
						"product_id":    productID.String(),
						"requested_qty": existing + qty,
						"available_qty": product.AvailableQty,
					})
			}
		}

		affected, err := repo.IncrementItem(ctx, cart.ID, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
		}
		if affected > 0 {
			return nil
		}
		// Insert under a savepoint: a violation aborts the enclosing
		// transaction on Postgres, and the retry below must still run.
		if err := tx.SavePoint("cart_item_insert").Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart item")
		}
		insErr := repo.InsertItem(ctx, &models.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			VendorID:  product.VendorID,
			Quantity:  qty,
			UnitPrice: product.UnitPrice,
		})
		if insErr == nil {
			return nil
		}
		// A concurrent add may have inserted the first line for this product
		// between the increment and the insert. Merge into that line instead
		// of surfacing the lost race.
		if db.IsUniqueViolation(insErr, "") && tx.RollbackTo("cart_item_insert").Error == nil {
			affected, err = repo.IncrementItem(ctx, cart.ID, productID, qty)
			if err == nil && affected > 0 {
				return nil
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, insErr, "insert cart item")
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByBuyer(ctx, buyerID)
}

// UpdateItem sets the quantity of a line; a quantity of zero or less removes it.
func (s *service) UpdateItem(ctx context.Context, buyerID, itemID uuid.UUID, qty int) (*models.Cart, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, buyerID, itemID)
	}

	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := s.ownedItem(ctx, repo, cart, itemID)
		if err != nil {
			return err
		}

		product, err := s.catalog.WithTx(tx).FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "product unavailable")
		}
		if product.TrackInventory && !product.AllowBackorder && qty > product.AvailableQty {
			return pkgerrors.New(pkgerrors.CodeInsufficientResource, "insufficient inventory").
				WithDetails(map[string]any{
					"product_id":    item.ProductID.String(),
					"requested_qty": qty,
					"available_qty": product.AvailableQty,
				})
		}

		return repo.UpdateItemQty(ctx, item.ID, qty)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByBuyer(ctx, buyerID)
}

func (s *service) RemoveItem(ctx context.Context, buyerID, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.ownedItem(ctx, repo, cart, itemID)
		if err != nil {
			return err
		}
		return repo.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByBuyer(ctx, buyerID)
}

func (s *service) Clear(ctx context.Context, buyerID uuid.UUID) error {
	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// ValidateForCheckout re-checks every line against live product state and
// reports issues without mutating anything.
func (s *service) ValidateForCheckout(ctx context.Context, buyerID uuid.UUID) (*CheckoutValidation, error) {
	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return &CheckoutValidation{Valid: false, Issues: []CheckoutIssue{{Reason: "cart is empty"}}}, nil
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	result := &CheckoutValidation{Valid: true}
	for _, item := range cart.Items {
		product, ok := byID[item.ProductID]
		switch {
		case !ok:
			result.addIssue(item, "product no longer exists")
		case !product.IsActive:
			result.addIssue(item, "product is no longer available")
		case product.TrackInventory && !product.AllowBackorder && item.Quantity > product.AvailableQty:
			result.addIssue(item, fmt.Sprintf("only %d left in stock", product.AvailableQty))
		}
	}
	return result, nil
}

func (v *CheckoutValidation) addIssue(item models.CartItem, reason string) {
	v.Valid = false
	v.Issues = append(v.Issues, CheckoutIssue{ItemID: item.ID, ProductID: item.ProductID, Reason: reason})
}

func (s *service) ownedItem(ctx context.Context, repo Repository, cart *models.Cart, itemID uuid.UUID) (*models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id required")
	}
	item, err := repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.CartID != cart.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item does not belong to buyer")
	}
	return item, nil
}
