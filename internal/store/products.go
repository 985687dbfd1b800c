package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/model"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock, p.category_id, p.is_used,
	p.lifecycle, p.image_mime, p.created_at, p.updated_at, COALESCE(c.name, '')`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

// productSortColumns maps the accepted sort keys to SQL expressions.
var productSortColumns = map[string]string{
	"created_at": "p.created_at",
	"price":      "CAST(p.price AS REAL)",
	"name":       "p.name",
	"stock":      "p.stock",
}

// ProductInput holds the fields of a new product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  *int64
	IsUsed      bool
}

// ProductUpdate holds the fields to change; nil fields are left alone.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *int64
	IsUsed      *bool
}

// ProductFilter selects products for listing.
type ProductFilter struct {
	Search         string
	CategoryID     *int64
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	IsUsed         *bool
	IncludeDeleted bool
	SortBy         string
	SortDesc       bool
	Page
}

// ProductImageURL is where a product's image is served.
func ProductImageURL(id int64) string {
	return fmt.Sprintf("/api/v1/products/%d/image", id)
}

func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var description, imageMime sql.NullString
	err := row.Scan(&p.ID, &p.Name, &description, &p.Price, &p.Stock, &p.CategoryID, &p.IsUsed,
		&p.Lifecycle, &imageMime, &p.CreatedAt, &p.UpdatedAt, &p.CategoryName)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	if imageMime.Valid {
		p.ImageURL = ProductImageURL(p.ID)
	}
	return p, nil
}

func validateProductFields(name *string, price *decimal.Decimal, stock *int) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return fmt.Errorf("%w: name required", model.ErrInvalidInput)
	}
	if price != nil && !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", model.ErrInvalidInput)
	}
	if stock != nil && *stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", model.ErrInvalidInput)
	}
	return nil
}

func checkCategory(ctx context.Context, q queryer, id *int64) error {
	if id == nil {
		return nil
	}
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, *id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: category %d", model.ErrNotFound, *id)
	}
	if err != nil {
		return fmt.Errorf("checking category: %w", err)
	}
	return nil
}

// CreateProduct creates a product. Initial stock is recorded as a restock
// movement attributed to accountID.
func CreateProduct(ctx context.Context, db *sql.DB, in ProductInput, accountID *int64) (*model.Product, error) {
	if err := validateProductFields(&in.Name, &in.Price, &in.Stock); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCategory(ctx, tx, in.CategoryID); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO products (name, description, price, stock, category_id, is_used)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(in.Name), nullString(in.Description), in.Price, in.Stock, in.CategoryID, in.IsUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting product id: %w", err)
	}

	if in.Stock > 0 {
		if err := recordMovement(ctx, tx, id, in.Stock, model.MovementRestock, nil, accountID, "initial stock"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing product: %w", err)
	}

	return GetProduct(ctx, db, id)
}

// GetProduct returns a product by ID, including deleted ones, or nil if there
// is none. Callers decide visibility with Lifecycle.Visible.
func GetProduct(ctx context.Context, db *sql.DB, id int64) (*model.Product, error) {
	return getProduct(ctx, db, id)
}

func getProduct(ctx context.Context, q queryer, id int64) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+productFrom+` WHERE p.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ListProducts returns products matching the filter.
func ListProducts(ctx context.Context, db *sql.DB, f ProductFilter) ([]model.Product, error) {
	page := f.Page.normalized()

	query := `SELECT ` + productColumns + productFrom + ` WHERE 1=1`
	var args []any

	if !f.IncludeDeleted {
		query += ` AND p.lifecycle = ?`
		args = append(args, model.LifecycleActive)
	}
	if f.Search != "" {
		query += ` AND (p.name LIKE ? OR p.description LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.CategoryID != nil {
		query += ` AND p.category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.MinPrice != nil {
		query += ` AND CAST(p.price AS REAL) >= ?`
		args = append(args, f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		query += ` AND CAST(p.price AS REAL) <= ?`
		args = append(args, f.MaxPrice.InexactFloat64())
	}
	if f.IsUsed != nil {
		query += ` AND p.is_used = ?`
		args = append(args, *f.IsUsed)
	}

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	col, ok := productSortColumns[sortBy]
	if !ok {
		return nil, fmt.Errorf("%w: cannot sort by %q", model.ErrInvalidInput, f.SortBy)
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	query += ` ORDER BY ` + col + ` ` + dir + `, p.id ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Skip)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// NewestProducts returns the most recently created active products.
func NewestProducts(ctx context.Context, db *sql.DB, limit int) ([]model.Product, error) {
	return ListProducts(ctx, db, ProductFilter{
		SortBy:   "created_at",
		SortDesc: true,
		Page:     Page{Limit: limit},
	})
}

// UpdateProduct applies a partial update. A stock change is recorded as an
// adjustment movement attributed to accountID.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, upd ProductUpdate, accountID *int64) (*model.Product, error) {
	if err := validateProductFields(upd.Name, upd.Price, upd.Stock); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.Lifecycle.Visible() {
		return nil, fmt.Errorf("%w: product %d", model.ErrNotFound, id)
	}
	if err := checkCategory(ctx, tx, upd.CategoryID); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*upd.Description))
	}
	if upd.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *upd.Price)
	}
	if upd.Stock != nil {
		sets = append(sets, "stock = ?")
		args = append(args, *upd.Stock)
	}
	if upd.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *upd.CategoryID)
	}
	if upd.IsUsed != nil {
		sets = append(sets, "is_used = ?")
		args = append(args, *upd.IsUsed)
	}
	args = append(args, id)

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	); err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}

	if upd.Stock != nil && *upd.Stock != current.Stock {
		if err := recordMovement(ctx, tx, id, *upd.Stock-current.Stock, model.MovementAdjustment, nil, accountID, "product update"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing product update: %w", err)
	}

	return GetProduct(ctx, db, id)
}

// DeleteProduct soft-deletes a product. Existing order lines keep referencing it.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET lifecycle = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lifecycle = ?`,
		model.LifecycleDeleted, id, model.LifecycleActive,
	)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: product %d", model.ErrNotFound, id)
	}
	return nil
}

// SetProductImage sets a product's image data.
func SetProductImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lifecycle = ?`,
		image, mime, id, model.LifecycleActive,
	)
	if err != nil {
		return fmt.Errorf("setting product image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: product %d", model.ErrNotFound, id)
	}
	return nil
}

// GetProductImage returns a product's image data and MIME type. Data is nil
// when the product or its image does not exist.
func GetProductImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM products WHERE id = ? AND lifecycle = ?`, id, model.LifecycleActive,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting product image: %w", err)
	}
	return image, mime.String, nil
}
