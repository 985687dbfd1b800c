package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/model"
)

const orderColumns = `id, account_id, total, status, lifecycle, shipping_address, notes, created_at, updated_at`

// OrderFilter selects orders for listing. A zero AccountID lists every
// account's orders.
type OrderFilter struct {
	AccountID int64
	Status    model.OrderStatus
	Page
}

// PlaceOrder validates every requested line against the catalog, captures
// prices, decrements stock and persists the order in one transaction. If any
// line fails, nothing is written.
func PlaceOrder(ctx context.Context, db *sql.DB, accountID int64, lines []model.LineRequest, shippingAddress, notes string) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", model.ErrInvalidInput)
	}
	for i, l := range lines {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d needs a product_id and a positive quantity", model.ErrInvalidInput, i+1)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	total := decimal.Zero
	captured := make([]model.OrderLine, 0, len(lines))
	for _, l := range lines {
		price, err := reserveStock(ctx, tx, l.ProductID, l.Quantity)
		if err != nil {
			return nil, err
		}
		line := model.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price}
		total = total.Add(line.Subtotal())
		captured = append(captured, line)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (account_id, total, status, shipping_address, notes) VALUES (?, ?, ?, ?, ?)`,
		accountID, total, model.OrderPending, nullString(shippingAddress), nullString(notes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting order id: %w", err)
	}

	for _, line := range captured {
		if err := insertLine(ctx, tx, orderID, accountID, line); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}

	return GetOrder(ctx, db, orderID)
}

// AddOrderLine appends a line to an existing order, decrementing stock and
// extending the total. Only administrators may set a unit price that differs
// from the current catalog price.
func AddOrderLine(ctx context.Context, db *sql.DB, actor model.Actor, orderID int64, req model.LineRequest, unitPrice *decimal.Decimal) (*model.Order, error) {
	if req.ProductID <= 0 || req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: product_id and a positive quantity required", model.ErrInvalidInput)
	}
	if unitPrice != nil && !unitPrice.IsPositive() {
		return nil, fmt.Errorf("%w: unit price must be positive", model.ErrInvalidInput)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderHeader(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %d", model.ErrNotFound, orderID)
	}
	if _, err := model.Authorize(actor, model.ActionAddOrderLine, model.Resource{OwnerID: order.AccountID}); err != nil {
		return nil, err
	}

	price, err := reserveStock(ctx, tx, req.ProductID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if unitPrice != nil && !unitPrice.Equal(price) {
		if model.Permit(actor, model.ActionOverridePrice, model.Resource{OwnerID: order.AccountID}) == model.GrantDenied {
			return nil, fmt.Errorf("%w: unit price %s does not match the catalog price %s",
				model.ErrInvalidInput, unitPrice, price)
		}
		price = *unitPrice
	}

	line := model.OrderLine{ProductID: req.ProductID, Quantity: req.Quantity, UnitPrice: price}
	if err := insertLine(ctx, tx, orderID, actor.ID, line); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET total = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		order.Total.Add(line.Subtotal()), orderID,
	); err != nil {
		return nil, fmt.Errorf("updating order total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order line: %w", err)
	}

	return GetOrder(ctx, db, orderID)
}

// SetOrderStatus changes an order's status. Administrators may set any valid
// status; owners may only cancel.
func SetOrderStatus(ctx context.Context, db *sql.DB, actor model.Actor, orderID int64, status string) (*model.Order, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderHeader(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %d", model.ErrNotFound, orderID)
	}

	res := model.Resource{OwnerID: order.AccountID, TargetStatus: model.OrderStatus(status)}
	if _, err := model.Authorize(actor, model.ActionSetOrderStatus, res); err != nil {
		return nil, err
	}

	target, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		target, orderID,
	); err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order status: %w", err)
	}

	return GetOrder(ctx, db, orderID)
}

// ReadOrder returns an order the actor is allowed to see.
func ReadOrder(ctx context.Context, db *sql.DB, actor model.Actor, orderID int64) (*model.Order, error) {
	order, err := GetOrder(ctx, db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %d", model.ErrNotFound, orderID)
	}
	if _, err := model.Authorize(actor, model.ActionReadOrder, model.Resource{OwnerID: order.AccountID}); err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteOrder soft-deletes an order. It then reads as not found.
func DeleteOrder(ctx context.Context, db *sql.DB, actor model.Actor, orderID int64) error {
	if _, err := model.Authorize(actor, model.ActionDeleteOrder, model.Resource{}); err != nil {
		return err
	}
	result, err := db.ExecContext(ctx,
		`UPDATE orders SET lifecycle = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND lifecycle = ?`,
		model.LifecycleDeleted, orderID, model.LifecycleActive,
	)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: order %d", model.ErrNotFound, orderID)
	}
	return nil
}

// GetOrder returns a visible order with its lines, or nil if there is none.
func GetOrder(ctx context.Context, db *sql.DB, id int64) (*model.Order, error) {
	order, err := getOrderHeader(ctx, db, id)
	if err != nil || order == nil {
		return nil, err
	}
	if err := attachLines(ctx, db, []*model.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns visible orders, newest first, with their lines.
func ListOrders(ctx context.Context, db *sql.DB, f OrderFilter) ([]model.Order, error) {
	page := f.Page.normalized()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE lifecycle = ?`
	args := []any{model.LifecycleActive}
	if f.AccountID != 0 {
		query += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Skip)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	rows.Close()

	ptrs := make([]*model.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := attachLines(ctx, db, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// reserveStock decrements a product's stock if enough is available and returns
// the price observed in the same statement. The conditional UPDATE is what
// keeps stock non-negative when placements race.
func reserveStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`UPDATE products SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lifecycle = ? AND stock >= ?
		 RETURNING price`,
		quantity, productID, model.LifecycleActive, quantity,
	).Scan(&price)
	if err == nil {
		return price, nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("reserving stock: %w", err)
	}

	var name string
	var stock int
	var lifecycle model.Lifecycle
	err = tx.QueryRowContext(ctx,
		`SELECT name, stock, lifecycle FROM products WHERE id = ?`, productID,
	).Scan(&name, &stock, &lifecycle)
	if err == sql.ErrNoRows || (err == nil && !lifecycle.Visible()) {
		return decimal.Zero, fmt.Errorf("%w: product %d not found or not available", model.ErrNotFound, productID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("checking product: %w", err)
	}
	return decimal.Zero, fmt.Errorf("%w: not enough stock for product %q (available: %d, requested: %d)",
		model.ErrInsufficientStock, name, stock, quantity)
}

func insertLine(ctx context.Context, tx *sql.Tx, orderID, accountID int64, line model.OrderLine) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_lines (order_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?)`,
		orderID, line.ProductID, line.Quantity, line.UnitPrice,
	); err != nil {
		return fmt.Errorf("creating order line: %w", err)
	}
	return recordMovement(ctx, tx, line.ProductID, -line.Quantity, model.MovementOrder, &orderID, &accountID, "")
}

func scanOrder(row rowScanner) (*model.Order, error) {
	o := &model.Order{}
	var address, notes sql.NullString
	err := row.Scan(&o.ID, &o.AccountID, &o.Total, &o.Status, &o.Lifecycle, &address, &notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.ShippingAddress = address.String
	o.Notes = notes.String
	o.Lines = []model.OrderLine{}
	return o, nil
}

// getOrderHeader returns a visible order without lines, or nil.
func getOrderHeader(ctx context.Context, q queryer, id int64) (*model.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND lifecycle = ?`, id, model.LifecycleActive,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return o, nil
}

// attachLines loads the lines of all given orders in one query.
func attachLines(ctx context.Context, q queryer, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Order, len(orders))
	args := make([]any, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		args = append(args, o.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.order_id, l.product_id, l.quantity, l.unit_price, p.name
		 FROM order_lines l
		 JOIN products p ON p.id = l.product_id
		 WHERE l.order_id IN (`+placeholders(len(args))+`)
		 ORDER BY l.id`, args...,
	)
	if err != nil {
		return fmt.Errorf("getting order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.ProductName); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		if o := byID[l.OrderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}
