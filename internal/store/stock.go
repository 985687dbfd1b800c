package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/techstore/internal/model"
)

func recordMovement(ctx context.Context, tx *sql.Tx, productID int64, delta int, reason model.MovementReason, orderID, accountID *int64, notes string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stock_movements (product_id, delta, reason, order_id, account_id, notes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		productID, delta, reason, orderID, accountID, nullString(notes),
	)
	if err != nil {
		return fmt.Errorf("recording stock movement: %w", err)
	}
	return nil
}

// AdjustStock changes a product's quantity on hand by delta (for restocks and
// corrections). The quantity never goes below zero.
func AdjustStock(ctx context.Context, db *sql.DB, productID int64, delta int, notes string, accountID *int64) (*model.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", model.ErrInvalidInput)
	}
	reason := model.MovementRestock
	if delta < 0 {
		reason = model.MovementAdjustment
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	var lifecycle model.Lifecycle
	err = tx.QueryRowContext(ctx,
		`SELECT stock, lifecycle FROM products WHERE id = ?`, productID,
	).Scan(&current, &lifecycle)
	if err == sql.ErrNoRows || (err == nil && !lifecycle.Visible()) {
		return nil, fmt.Errorf("%w: product %d", model.ErrNotFound, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking current stock: %w", err)
	}

	if current+delta < 0 {
		return nil, fmt.Errorf("%w: adjustment would leave %d + %d = %d units",
			model.ErrInsufficientStock, current, delta, current+delta)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		delta, productID,
	); err != nil {
		return nil, fmt.Errorf("adjusting stock: %w", err)
	}

	if err := recordMovement(ctx, tx, productID, delta, reason, nil, accountID, notes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing adjustment: %w", err)
	}

	return GetProduct(ctx, db, productID)
}

// ProductHistory returns the stock movements of a product, newest first.
func ProductHistory(ctx context.Context, db *sql.DB, productID int64) ([]model.StockMovement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, delta, reason, order_id, account_id, notes, created_at
		 FROM stock_movements
		 WHERE product_id = ?
		 ORDER BY created_at DESC, id DESC`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting product history: %w", err)
	}
	defer rows.Close()

	var movements []model.StockMovement
	for rows.Next() {
		var m model.StockMovement
		var notes sql.NullString
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &m.Reason, &m.OrderID, &m.AccountID, &notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning stock movement: %w", err)
		}
		m.Notes = notes.String
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
