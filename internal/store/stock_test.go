package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/techstore/internal/db"
	"github.com/erazemk/techstore/internal/model"
)

func TestAdjustStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := mustAccount(t, database, "admin@example.com", model.RoleAdmin)
	p := mustProduct(t, database, "SSD", "89.00", 3)

	got, err := AdjustStock(ctx, database, p.ID, 5, "delivery", &admin.ID)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if got.Stock != 8 {
		t.Errorf("expected 8 units, got %d", got.Stock)
	}

	got, err = AdjustStock(ctx, database, p.ID, -2, "damaged", &admin.ID)
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if got.Stock != 6 {
		t.Errorf("expected 6 units, got %d", got.Stock)
	}

	history, _ := ProductHistory(ctx, database, p.ID)
	if len(history) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(history))
	}
	latest := history[0]
	if latest.Delta != -2 || latest.Reason != model.MovementAdjustment || latest.Notes != "damaged" {
		t.Errorf("unexpected latest movement: %+v", latest)
	}
	if latest.AccountID == nil || *latest.AccountID != admin.ID {
		t.Errorf("expected movement attributed to admin, got %v", latest.AccountID)
	}
}

func TestAdjustStockNeverNegative(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := mustProduct(t, database, "SSD", "89.00", 3)
	if _, err := AdjustStock(ctx, database, p.ID, -4, "", nil); !errors.Is(err, model.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if stockOf(t, database, p.ID) != 3 {
		t.Error("expected stock unchanged after rejected adjustment")
	}
}

func TestAdjustStockInvalid(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	p := mustProduct(t, database, "SSD", "89.00", 3)
	if _, err := AdjustStock(ctx, database, p.ID, 0, "", nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero delta, got %v", err)
	}
	if _, err := AdjustStock(ctx, database, 999, 1, "", nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing product, got %v", err)
	}

	DeleteProduct(ctx, database, p.ID)
	if _, err := AdjustStock(ctx, database, p.ID, 1, "", nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted product, got %v", err)
	}
}
