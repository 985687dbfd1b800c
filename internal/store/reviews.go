package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/techstore/internal/model"
)

const reviewSelect = `SELECT r.id, r.product_id, r.account_id, r.rating, r.comment, r.created_at, a.name
	FROM reviews r JOIN accounts a ON a.id = r.account_id`

func scanReview(row rowScanner) (*model.Review, error) {
	r := &model.Review{}
	var comment sql.NullString
	if err := row.Scan(&r.ID, &r.ProductID, &r.AccountID, &r.Rating, &comment, &r.CreatedAt, &r.AccountName); err != nil {
		return nil, err
	}
	r.Comment = comment.String
	return r, nil
}

// CreateReview records an account's rating of an active product. Each account
// may review a product once.
func CreateReview(ctx context.Context, db *sql.DB, accountID, productID int64, rating int, comment string) (*model.Review, error) {
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", model.ErrInvalidInput, model.MinRating, model.MaxRating)
	}

	p, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Lifecycle.Visible() {
		return nil, fmt.Errorf("%w: product %d", model.ErrNotFound, productID)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO reviews (product_id, account_id, rating, comment) VALUES (?, ?, ?, ?)`,
		productID, accountID, rating, nullString(comment),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: product %d already reviewed", model.ErrConflict, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting review id: %w", err)
	}
	return GetReview(ctx, db, id)
}

// GetReview returns a review by ID, or nil if there is none.
func GetReview(ctx context.Context, db *sql.DB, id int64) (*model.Review, error) {
	r, err := scanReview(db.QueryRowContext(ctx, reviewSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting review: %w", err)
	}
	return r, nil
}

// ListProductReviews returns a product's reviews, newest first.
func ListProductReviews(ctx context.Context, db *sql.DB, productID int64, page Page) ([]model.Review, error) {
	page = page.normalized()
	rows, err := db.QueryContext(ctx,
		reviewSelect+` WHERE r.product_id = ? ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		productID, page.Limit, page.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, *r)
	}
	return reviews, rows.Err()
}

// DeleteReview removes a review. Authors may delete their own; admins any.
func DeleteReview(ctx context.Context, db *sql.DB, actor model.Actor, id int64) error {
	r, err := GetReview(ctx, db, id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: review %d", model.ErrNotFound, id)
	}
	if _, err := model.Authorize(actor, model.ActionDeleteReview, model.Resource{OwnerID: r.AccountID}); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting review: %w", err)
	}
	return nil
}
