package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/techstore/internal/model"
)

// CreateCategory creates a new category with a unique name.
func CreateCategory(ctx context.Context, db *sql.DB, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", model.ErrInvalidInput)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`,
		name, nullString(description),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: a category named %q already exists", model.ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}

	return GetCategory(ctx, db, id)
}

// GetCategory returns a category by ID, or nil if there is none.
func GetCategory(ctx context.Context, db *sql.DB, id int64) (*model.Category, error) {
	c := &model.Category{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	c.Description = description.String
	return c, nil
}

// ListCategories returns categories ordered by name.
func ListCategories(ctx context.Context, db *sql.DB, page Page) ([]model.Category, error) {
	page = page.normalized()
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM categories
		 ORDER BY name LIMIT ? OFFSET ?`, page.Limit, page.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.Description = description.String
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category and replaces its description.
func UpdateCategory(ctx context.Context, db *sql.DB, id int64, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", model.ErrInvalidInput)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		name, nullString(description), id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: a category named %q already exists", model.ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("updating category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: category %d", model.ErrNotFound, id)
	}

	return GetCategory(ctx, db, id)
}

// DeleteCategory removes a category. Its products become uncategorized.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %d", model.ErrNotFound, id)
	}
	return nil
}
