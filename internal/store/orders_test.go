package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/db"
	"github.com/erazemk/techstore/internal/model"
)

func TestPlaceOrderCapturesPricesAndTotal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	buyer := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	a := mustProduct(t, database, "Mouse", "10.00", 5)
	b := mustProduct(t, database, "Pad", "15.00", 5)

	order, err := PlaceOrder(ctx, database, buyer.ID, []model.LineRequest{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	}, "Main St 1", "")
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if !order.Total.Equal(decimal.RequireFromString("35.00")) {
		t.Errorf("expected total 35.00, got %s", order.Total)
	}
	if order.Status != model.OrderPending {
		t.Errorf("expected pending, got %s", order.Status)
	}
	if len(order.Lines) != 2 || order.Lines[0].ProductName != "Mouse" {
		t.Errorf("unexpected lines: %+v", order.Lines)
	}
	if stockOf(t, database, a.ID) != 3 || stockOf(t, database, b.ID) != 4 {
		t.Error("expected stock to be decremented")
	}

	// Later price changes do not touch captured prices.
	price := decimal.RequireFromString("99.00")
	UpdateProduct(ctx, database, a.ID, ProductUpdate{Price: &price}, nil)
	again, _ := GetOrder(ctx, database, order.ID)
	if !again.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected captured price 10.00, got %s", again.Lines[0].UnitPrice)
	}

	history, _ := ProductHistory(ctx, database, a.ID)
	if history[0].Reason != model.MovementOrder || history[0].Delta != -2 || *history[0].OrderID != order.ID {
		t.Errorf("unexpected order movement: %+v", history[0])
	}
}

func TestPlaceOrderInsufficientStockIsAtomic(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	buyer := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	a := mustProduct(t, database, "Mouse", "10.00", 5)
	b := mustProduct(t, database, "Pad", "15.00", 1)

	_, err := PlaceOrder(ctx, database, buyer.ID, []model.LineRequest{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 2},
	}, "", "")
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if stockOf(t, database, a.ID) != 5 || stockOf(t, database, b.ID) != 1 {
		t.Error("expected no stock change after failed order")
	}
	orders, _ := ListOrders(ctx, database, OrderFilter{})
	if len(orders) != 0 {
		t.Errorf("expected no orders, got %d", len(orders))
	}
}

func TestPlaceOrderSequentialExhaustion(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	buyer := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	p := mustProduct(t, database, "GPU", "500.00", 5)
	lines := []model.LineRequest{{ProductID: p.ID, Quantity: 3}}

	if _, err := PlaceOrder(ctx, database, buyer.ID, lines, "", ""); err != nil {
		t.Fatalf("first order: %v", err)
	}
	if _, err := PlaceOrder(ctx, database, buyer.ID, lines, "", ""); !errors.Is(err, model.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock for second order, got %v", err)
	}
	if stockOf(t, database, p.ID) != 2 {
		t.Errorf("expected 2 units left, got %d", stockOf(t, database, p.ID))
	}
}

func TestPlaceOrderInvalid(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	buyer := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	p := mustProduct(t, database, "GPU", "500.00", 5)
	gone := mustProduct(t, database, "Old GPU", "100.00", 5)
	DeleteProduct(ctx, database, gone.ID)

	tests := []struct {
		name  string
		lines []model.LineRequest
		want  error
	}{
		{"empty", nil, model.ErrInvalidInput},
		{"zero quantity", []model.LineRequest{{ProductID: p.ID, Quantity: 0}}, model.ErrInvalidInput},
		{"missing product", []model.LineRequest{{ProductID: 999, Quantity: 1}}, model.ErrNotFound},
		{"deleted product", []model.LineRequest{{ProductID: gone.ID, Quantity: 1}}, model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlaceOrder(ctx, database, buyer.ID, tt.lines, "", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "shop.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	buyer := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	p := mustProduct(t, database, "Last One", "42.00", 1)

	const buyers = 8
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := PlaceOrder(ctx, database, buyer.ID, []model.LineRequest{{ProductID: p.ID, Quantity: 1}}, "", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, short int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInsufficientStock):
			short++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || short != buyers-1 {
		t.Errorf("expected 1 success and %d shortages, got %d and %d", buyers-1, ok, short)
	}
	if stockOf(t, database, p.ID) != 0 {
		t.Errorf("expected stock 0, got %d", stockOf(t, database, p.ID))
	}
}

func TestReadOrderAccess(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	bor := mustAccount(t, database, "bor@example.com", model.RoleCustomer)
	admin := mustAccount(t, database, "admin@example.com", model.RoleAdmin)
	p := mustProduct(t, database, "Mouse", "10.00", 5)

	order, _ := PlaceOrder(ctx, database, ana.ID, []model.LineRequest{{ProductID: p.ID, Quantity: 1}}, "", "")

	ownerView, err := ReadOrder(ctx, database, ana.Actor(), order.ID)
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	adminView, err := ReadOrder(ctx, database, admin.Actor(), order.ID)
	if err != nil {
		t.Fatalf("admin read: %v", err)
	}
	if !reflect.DeepEqual(ownerView, adminView) {
		t.Errorf("owner and admin see different orders:\n%+v\n%+v", ownerView, adminView)
	}
	if len(ownerView.Lines) != 1 || ownerView.Lines[0].ProductName != "Mouse" {
		t.Errorf("expected the line with its product name, got %+v", ownerView.Lines)
	}
	if _, err := ReadOrder(ctx, database, bor.Actor(), order.ID); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := ReadOrder(ctx, database, admin.Actor(), 999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetOrderStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	bor := mustAccount(t, database, "bor@example.com", model.RoleCustomer)
	admin := mustAccount(t, database, "admin@example.com", model.RoleAdmin)
	p := mustProduct(t, database, "Mouse", "10.00", 5)

	order, _ := PlaceOrder(ctx, database, ana.ID, []model.LineRequest{{ProductID: p.ID, Quantity: 2}}, "", "")

	if _, err := SetOrderStatus(ctx, database, ana.Actor(), order.ID, "shipped"); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected owner to be forbidden from shipping, got %v", err)
	}
	if _, err := SetOrderStatus(ctx, database, bor.Actor(), order.ID, "cancelled"); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected stranger to be forbidden from cancelling, got %v", err)
	}
	if _, err := SetOrderStatus(ctx, database, admin.Actor(), order.ID, "refunded"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown status, got %v", err)
	}

	paid, err := SetOrderStatus(ctx, database, admin.Actor(), order.ID, "paid")
	if err != nil {
		t.Fatalf("admin SetOrderStatus: %v", err)
	}
	if paid.Status != model.OrderPaid {
		t.Errorf("expected paid, got %s", paid.Status)
	}

	cancelled, err := SetOrderStatus(ctx, database, ana.Actor(), order.ID, "cancelled")
	if err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if cancelled.Status != model.OrderCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	// Cancelling does not restock.
	if stockOf(t, database, p.ID) != 3 {
		t.Errorf("expected stock to stay at 3, got %d", stockOf(t, database, p.ID))
	}
}

func TestAddOrderLine(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	bor := mustAccount(t, database, "bor@example.com", model.RoleCustomer)
	admin := mustAccount(t, database, "admin@example.com", model.RoleAdmin)
	mouse := mustProduct(t, database, "Mouse", "10.00", 5)
	pad := mustProduct(t, database, "Pad", "15.00", 5)

	order, _ := PlaceOrder(ctx, database, ana.ID, []model.LineRequest{{ProductID: mouse.ID, Quantity: 1}}, "", "")

	order, err := AddOrderLine(ctx, database, ana.Actor(), order.ID, model.LineRequest{ProductID: pad.ID, Quantity: 2}, nil)
	if err != nil {
		t.Fatalf("AddOrderLine: %v", err)
	}
	if !order.Total.Equal(decimal.RequireFromString("40.00")) || len(order.Lines) != 2 {
		t.Errorf("unexpected order after add: total %s, %d lines", order.Total, len(order.Lines))
	}
	if stockOf(t, database, pad.ID) != 3 {
		t.Errorf("expected pad stock 3, got %d", stockOf(t, database, pad.ID))
	}

	wrong := decimal.RequireFromString("1.00")
	if _, err := AddOrderLine(ctx, database, ana.Actor(), order.ID, model.LineRequest{ProductID: pad.ID, Quantity: 1}, &wrong); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected customer price override to be rejected, got %v", err)
	}
	if stockOf(t, database, pad.ID) != 3 {
		t.Error("expected rejected line to leave stock alone")
	}

	order, err = AddOrderLine(ctx, database, admin.Actor(), order.ID, model.LineRequest{ProductID: pad.ID, Quantity: 1}, &wrong)
	if err != nil {
		t.Fatalf("admin AddOrderLine: %v", err)
	}
	if !order.Total.Equal(decimal.RequireFromString("41.00")) {
		t.Errorf("expected total 41.00 with admin price, got %s", order.Total)
	}

	if _, err := AddOrderLine(ctx, database, bor.Actor(), order.ID, model.LineRequest{ProductID: pad.ID, Quantity: 1}, nil); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := AddOrderLine(ctx, database, ana.Actor(), order.ID, model.LineRequest{ProductID: pad.ID, Quantity: 10}, nil); !errors.Is(err, model.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := AddOrderLine(ctx, database, ana.Actor(), 999, model.LineRequest{ProductID: pad.ID, Quantity: 1}, nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing order, got %v", err)
	}
}

func TestListOrders(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	bor := mustAccount(t, database, "bor@example.com", model.RoleCustomer)
	admin := mustAccount(t, database, "admin@example.com", model.RoleAdmin)
	p := mustProduct(t, database, "Mouse", "10.00", 10)
	line := []model.LineRequest{{ProductID: p.ID, Quantity: 1}}

	first, _ := PlaceOrder(ctx, database, ana.ID, line, "", "")
	second, _ := PlaceOrder(ctx, database, ana.ID, line, "", "")
	PlaceOrder(ctx, database, bor.ID, line, "", "")
	SetOrderStatus(ctx, database, admin.Actor(), first.ID, "paid")

	mine, err := ListOrders(ctx, database, OrderFilter{AccountID: ana.ID})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != second.ID {
		t.Errorf("expected ana's orders newest first, got %+v", mine)
	}
	if len(mine[0].Lines) != 1 {
		t.Errorf("expected lines to be loaded, got %d", len(mine[0].Lines))
	}

	all, _ := ListOrders(ctx, database, OrderFilter{})
	if len(all) != 3 {
		t.Errorf("expected 3 orders, got %d", len(all))
	}

	paid, _ := ListOrders(ctx, database, OrderFilter{Status: model.OrderPaid})
	if len(paid) != 1 || paid[0].ID != first.ID {
		t.Errorf("expected only the paid order, got %+v", paid)
	}

	page, _ := ListOrders(ctx, database, OrderFilter{Page: Page{Skip: 1, Limit: 1}})
	if len(page) != 1 {
		t.Errorf("expected a single order page, got %d", len(page))
	}
}

func TestDeleteOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ana := mustAccount(t, database, "ana@example.com", model.RoleCustomer)
	admin := mustAccount(t, database, "admin@example.com", model.RoleAdmin)
	p := mustProduct(t, database, "Mouse", "10.00", 10)

	order, _ := PlaceOrder(ctx, database, ana.ID, []model.LineRequest{{ProductID: p.ID, Quantity: 1}}, "", "")

	if err := DeleteOrder(ctx, database, ana.Actor(), order.ID); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected owner delete to be forbidden, got %v", err)
	}
	if err := DeleteOrder(ctx, database, admin.Actor(), order.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}

	if _, err := ReadOrder(ctx, database, admin.Actor(), order.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected deleted order to read as not found, got %v", err)
	}
	if orders, _ := ListOrders(ctx, database, OrderFilter{}); len(orders) != 0 {
		t.Errorf("expected deleted order to be hidden, got %d", len(orders))
	}
	if err := DeleteOrder(ctx, database, admin.Actor(), order.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
