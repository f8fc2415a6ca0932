package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
)

// Ledger mutates product stock levels inside a caller-owned transaction.
// Reserve and Restore are the only writers of available_qty in the pipeline.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type ledger struct{}

// NewLedger returns the conditional-update inventory ledger.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve atomically decrements available stock. The guard clause makes two
// concurrent reservations of the last unit serialize at the database: the
// loser matches zero rows and fails with the live available quantity.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND track_inventory = ? AND (allow_backorder = ? OR available_qty >= ?)
	`, qty, productID, true, true, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// No row moved: untracked product (a no-op), missing product, or a real
	// shortfall. One read tells them apart and supplies the error detail.
	var product models.Product
	err := tx.WithContext(ctx).
		Select("id", "track_inventory", "available_qty").
		Where("id = ?", productID).
		First(&product).Error
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for reserve")
	}
	if !product.TrackInventory {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientResource, "insufficient inventory").
		WithDetails(map[string]any{
			"product_id":    productID.String(),
			"requested_qty": qty,
			"available_qty": product.AvailableQty,
		})
}

// Restore returns previously reserved stock, e.g. on order cancellation.
// Untracked products are left alone.
func (ledger) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory restore")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND track_inventory = ?
	`, qty, productID, true)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore inventory")
	}
	return nil
}
