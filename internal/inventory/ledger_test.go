package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sokohub-labs/sokohub-backend/pkg/db/models"
	pkgerrors "github.com/sokohub-labs/sokohub-backend/pkg/errors"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int, track, backorder bool) uuid.UUID {
	t.Helper()
	p := models.Product{
		VendorID:       uuid.New(),
		Name:           "test product",
		UnitPrice:      types.MoneyFromInt(25000),
		IsActive:       true,
		TrackInventory: track,
		AllowBackorder: backorder,
		AvailableQty:   qty,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p.ID
}

func availableQty(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return p.AvailableQty
}

func TestReserveDecrementsStock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()
	id := seedProduct(t, db, 50, true, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, id, 2)
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := availableQty(t, db, id); got != 48 {
		t.Fatalf("available qty = %d, want 48", got)
	}
}

func TestReserveFailsOnShortfall(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()
	id := seedProduct(t, db, 1, true, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, id, 2)
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeInsufficientResource {
		t.Fatalf("error code = %v, want insufficient resource", pkgerrors.CodeOf(err))
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok || details["available_qty"] != 1 {
		t.Fatalf("details = %v, want available_qty 1", details)
	}
	if got := availableQty(t, db, id); got != 1 {
		t.Fatalf("available qty mutated to %d", got)
	}
}

func TestReserveAllowsBackorderBelowZero(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()
	id := seedProduct(t, db, 1, true, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, id, 3)
	})
	if err != nil {
		t.Fatalf("reserve with backorder: %v", err)
	}
	if got := availableQty(t, db, id); got != -2 {
		t.Fatalf("available qty = %d, want -2", got)
	}
}

func TestReserveSkipsUntrackedProduct(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()
	id := seedProduct(t, db, 0, false, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, id, 5)
	})
	if err != nil {
		t.Fatalf("reserve untracked: %v", err)
	}
	if got := availableQty(t, db, id); got != 0 {
		t.Fatalf("available qty = %d, want 0", got)
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Reserve(ctx, tx, uuid.New(), 1)
	})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("error code = %v, want not found", pkgerrors.CodeOf(err))
	}
}

func TestRestoreReturnsStock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()
	id := seedProduct(t, db, 48, true, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Restore(ctx, tx, id, 2)
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := availableQty(t, db, id); got != 50 {
		t.Fatalf("available qty = %d, want 50", got)
	}
}

func TestRestoreLeavesUntrackedAlone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	led := NewLedger()
	id := seedProduct(t, db, 7, false, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return led.Restore(ctx, tx, id, 3)
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := availableQty(t, db, id); got != 7 {
		t.Fatalf("available qty = %d, want 7", got)
	}
}
