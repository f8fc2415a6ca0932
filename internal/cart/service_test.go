package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/internal/catalog"
	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Cart{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db), gormTxRunner{db: db})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedProduct(t *testing.T, db *gorm.DB, price int64, qty int, active bool) *models.Product {
	t.Helper()
	p := models.Product{
		VendorID:       uuid.New(),
		Name:           "sack of maize",
		UnitPrice:      types.MoneyFromInt(price),
		IsActive:       active,
		TrackInventory: true,
		AvailableQty:   qty,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return &p
}

func TestGetCartCreatesLazily(t *testing.T) {
	svc, _ := newTestService(t)
	buyer := uuid.New()

	cart, err := svc.GetCart(context.Background(), buyer)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if cart.BuyerID != buyer || len(cart.Items) != 0 {
		t.Fatalf("unexpected cart %+v", cart)
	}

	again, err := svc.GetCart(context.Background(), buyer)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.ID != cart.ID {
		t.Fatal("expected the same cart on repeat access")
	}
}

func TestAddItemMergesQuantities(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()
	product := seedProduct(t, db, 25000, 50, true)

	if _, err := svc.AddItem(ctx, buyer, product.ID, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddItem(ctx, buyer, product.ID, 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", cart.Items[0].Quantity)
	}
	if !cart.Items[0].UnitPrice.Equal(types.MoneyFromInt(25000)) {
		t.Fatalf("unit price snapshot = %s", cart.Items[0].UnitPrice)
	}
}

func TestAddItemRejectsOverInventory(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()
	product := seedProduct(t, db, 1000, 4, true)

	if _, err := svc.AddItem(ctx, buyer, product.ID, 3); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := svc.AddItem(ctx, buyer, product.ID, 2)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInsufficientResource {
		t.Fatalf("error code = %v, want insufficient resource", pkgerrors.CodeOf(err))
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok || details["available_qty"] != 4 {
		t.Fatalf("details = %v, want available_qty 4", details)
	}
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	svc, db := newTestService(t)
	buyer := uuid.New()
	product := seedProduct(t, db, 1000, 10, false)

	_, err := svc.AddItem(context.Background(), buyer, product.ID, 1)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeConflict {
		t.Fatalf("error code = %v, want conflict", pkgerrors.CodeOf(err))
	}
}

// raceRepo plants a rival cart line between the merge attempt and the insert,
// reproducing two adds for the same product landing at once.
type raceRepo struct {
	Repository
	db      *gorm.DB
	rival   models.CartItem
	tripped *bool
}

func (r *raceRepo) WithTx(tx *gorm.DB) Repository {
	return &raceRepo{Repository: r.Repository.WithTx(tx), db: tx, rival: r.rival, tripped: r.tripped}
}

func (r *raceRepo) IncrementItem(ctx context.Context, cartID, productID uuid.UUID, qty int) (int64, error) {
	if !*r.tripped {
		*r.tripped = true
		r.rival.CartID = cartID
		if err := r.db.Create(&r.rival).Error; err != nil {
			return 0, err
		}
		return 0, nil
	}
	return r.Repository.IncrementItem(ctx, cartID, productID, qty)
}

func TestAddItemMergesWhenConcurrentAddWinsInsert(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Cart{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	product := seedProduct(t, db, 1500, 20, true)

	tripped := false
	repo := &raceRepo{
		Repository: NewRepository(db),
		db:         db,
		rival: models.CartItem{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Quantity:  2,
			UnitPrice: product.UnitPrice,
		},
		tripped: &tripped,
	}
	svc, err := NewService(repo, catalog.NewRepository(db), gormTxRunner{db: db})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cart, err := svc.AddItem(context.Background(), uuid.New(), product.ID, 3)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want rival 2 merged with added 3", cart.Items[0].Quantity)
	}
}

func TestUpdateItemZeroQuantityRemoves(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()
	product := seedProduct(t, db, 1000, 10, true)

	cart, err := svc.AddItem(ctx, buyer, product.ID, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	cart, err = svc.UpdateItem(ctx, buyer, cart.Items[0].ID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(cart.Items))
	}
}

func TestUpdateItemOtherBuyersLineForbidden(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, db, 1000, 10, true)

	owner := uuid.New()
	cart, err := svc.AddItem(ctx, owner, product.ID, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	intruder := uuid.New()
	_, err = svc.UpdateItem(ctx, intruder, cart.Items[0].ID, 5)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeForbidden {
		t.Fatalf("error code = %v, want forbidden", pkgerrors.CodeOf(err))
	}
}

func TestClearEmptiesCart(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()
	a := seedProduct(t, db, 1000, 10, true)
	b := seedProduct(t, db, 2000, 10, true)

	if _, err := svc.AddItem(ctx, buyer, a.ID, 1); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := svc.AddItem(ctx, buyer, b.ID, 1); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := svc.Clear(ctx, buyer); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cart, err := svc.GetCart(ctx, buyer)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected cleared cart, got %d items", len(cart.Items))
	}
}

func TestValidateForCheckoutReportsIssues(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()
	good := seedProduct(t, db, 1000, 10, true)
	scarce := seedProduct(t, db, 1000, 5, true)

	if _, err := svc.AddItem(ctx, buyer, good.ID, 2); err != nil {
		t.Fatalf("add good: %v", err)
	}
	if _, err := svc.AddItem(ctx, buyer, scarce.ID, 5); err != nil {
		t.Fatalf("add scarce: %v", err)
	}

	// Stock drains and the product is pulled after the lines were added.
	if err := db.Model(&models.Product{}).Where("id = ?", scarce.ID).Update("available_qty", 1).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}
	if err := db.Model(&models.Product{}).Where("id = ?", good.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	validation, err := svc.ValidateForCheckout(ctx, buyer)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validation.Valid || len(validation.Issues) != 2 {
		t.Fatalf("unexpected validation %+v", validation)
	}
}

func TestValidateForCheckoutEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)
	validation, err := svc.ValidateForCheckout(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validation.Valid {
		t.Fatal("empty cart must not validate")
	}
}
