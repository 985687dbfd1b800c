package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle tags a soft-deletable record.
type Lifecycle string

// Lifecycle states.
const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// Visible reports whether a record with this lifecycle shows up in default
// reads and can take part in new orders.
func (l Lifecycle) Visible() bool {
	return l == LifecycleActive
}

// Product is a sellable catalog item with a quantity on hand.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	IsUsed       bool            `json:"is_used"`
	Lifecycle    Lifecycle       `json:"lifecycle"`
	ImageURL     string          `json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CategoryName string          `json:"category_name,omitempty"`
}

// Category groups products.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review is an account's rating of a product.
type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	AccountID int64     `json:"account_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields (not always populated).
	AccountName string `json:"account_name,omitempty"`
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// MovementReason says why a product's quantity changed.
type MovementReason string

// Movement reasons.
const (
	MovementOrder      MovementReason = "order"
	MovementRestock    MovementReason = "restock"
	MovementAdjustment MovementReason = "adjustment"
)

// StockMovement records one change to a product's quantity on hand.
type StockMovement struct {
	ID        int64          `json:"id"`
	ProductID int64          `json:"product_id"`
	Delta     int            `json:"delta"`
	Reason    MovementReason `json:"reason"`
	OrderID   *int64         `json:"order_id,omitempty"`
	AccountID *int64         `json:"account_id,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
