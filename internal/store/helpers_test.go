package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/model"
)

func mustAccount(t *testing.T, database *sql.DB, email string, role model.Role) *model.Account {
	t.Helper()
	a, err := CreateAccount(context.Background(), database, email, "Test "+email, "hash", role)
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", email, err)
	}
	return a
}

func mustProduct(t *testing.T, database *sql.DB, name, price string, stock int) *model.Product {
	t.Helper()
	p, err := CreateProduct(context.Background(), database, ProductInput{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}, nil)
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return p
}

func stockOf(t *testing.T, database *sql.DB, id int64) int {
	t.Helper()
	p, err := GetProduct(context.Background(), database, id)
	if err != nil || p == nil {
		t.Fatalf("GetProduct(%d): %v", id, err)
	}
	return p.Stock
}
