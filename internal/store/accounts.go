package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/techstore/internal/model"
)

const accountColumns = `id, email, name, password_hash, role, active, created_at, last_access_at`

// AccountUpdate holds the fields to change; nil fields are left alone.
type AccountUpdate struct {
	Email        *string
	Name         *string
	PasswordHash *string
	Role         *model.Role
	Active       *bool
}

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.Active, &a.CreatedAt, &a.LastAccessAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAccount creates a new account. The email must already be normalized.
func CreateAccount(ctx context.Context, db *sql.DB, email, name, passwordHash string, role model.Role) (*model.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, role)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name required", model.ErrInvalidInput)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO accounts (email, name, password_hash, role) VALUES (?, ?, ?, ?)`,
		email, name, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: email already registered", model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting account id: %w", err)
	}

	return GetAccount(ctx, db, id)
}

// GetAccount returns an account by ID, or nil if there is none.
func GetAccount(ctx context.Context, db *sql.DB, id int64) (*model.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

// GetAccountByEmail returns an account by email (including inactive ones for
// auth checks), or nil if there is none.
func GetAccountByEmail(ctx context.Context, db *sql.DB, email string) (*model.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.ToLower(email),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by email: %w", err)
	}
	return a, nil
}

// ListAccounts returns accounts, optionally filtered by a name or email substring.
func ListAccounts(ctx context.Context, db *sql.DB, search string, page Page) ([]model.Account, error) {
	page = page.normalized()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	var args []any
	if search != "" {
		query += ` AND (name LIKE ? OR email LIKE ?)`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Skip)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccount applies a partial update to an account.
func UpdateAccount(ctx context.Context, db *sql.DB, id int64, upd AccountUpdate) (*model.Account, error) {
	var sets []string
	var args []any

	if upd.Email != nil {
		email, err := model.NormalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "email = ?")
		args = append(args, email)
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", model.ErrInvalidInput)
		}
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, *upd.Role)
		}
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *upd.Active)
	}

	if len(sets) > 0 {
		args = append(args, id)
		result, err := db.ExecContext(ctx,
			`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
		)
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		if err != nil {
			return nil, fmt.Errorf("updating account: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: account %d", model.ErrNotFound, id)
		}
	}

	a, err := GetAccount(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: account %d", model.ErrNotFound, id)
	}
	return a, nil
}

// DeactivateAccount marks an account inactive. Its orders and reviews stay.
func DeactivateAccount(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE accounts SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating account: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account %d", model.ErrNotFound, id)
	}
	return nil
}

// TouchAccount records that the account was just used.
func TouchAccount(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE accounts SET last_access_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("touching account: %w", err)
	}
	return nil
}
