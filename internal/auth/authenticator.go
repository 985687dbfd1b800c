package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/techstore/internal/model"
	"github.com/erazemk/techstore/internal/store"
)

// touchInterval is how stale last_access_at may get before Resolve rewrites it.
const touchInterval = time.Minute

// Authenticator turns credentials into accounts.
type Authenticator struct {
	DB     *sql.DB
	Secret string
	TTL    time.Duration
}

// Session is an issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Login checks an email and password and issues a token. Unknown emails and
// wrong passwords are indistinguishable.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*model.Account, *Session, error) {
	account, err := store.GetAccountByEmail(ctx, a.DB, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, err
	}
	if account == nil || !CheckPassword(account.PasswordHash, password) {
		return nil, nil, fmt.Errorf("%w: invalid credentials", model.ErrUnauthenticated)
	}
	if !account.Active {
		return nil, nil, fmt.Errorf("%w: account is deactivated", model.ErrInactiveAccount)
	}

	session, err := a.Issue(account)
	if err != nil {
		return nil, nil, err
	}
	if err := store.TouchAccount(ctx, a.DB, account.ID); err != nil {
		slog.Warn("recording login", "account_id", account.ID, "error", err)
	}
	return account, session, nil
}

// Issue signs a token for an account.
func (a *Authenticator) Issue(account *model.Account) (*Session, error) {
	ttl := a.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	token, err := GenerateToken(a.Secret, ttl, account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
}

// Resolve returns the account a token belongs to. The role is always read from
// the store, never from the token.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*model.Account, *Claims, error) {
	claims, err := ValidateToken(a.Secret, token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrUnauthenticated, err)
	}

	revoked, err := store.IsTokenRevoked(ctx, a.DB, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, fmt.Errorf("%w: token has been revoked", model.ErrUnauthenticated)
	}

	id, err := claims.AccountID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrUnauthenticated, err)
	}
	account, err := store.GetAccount(ctx, a.DB, id)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, fmt.Errorf("%w: account no longer exists", model.ErrUnauthenticated)
	}
	if !account.Active {
		return nil, nil, fmt.Errorf("%w: account is deactivated", model.ErrInactiveAccount)
	}

	if account.LastAccessAt == nil || time.Since(*account.LastAccessAt) >= touchInterval {
		if err := store.TouchAccount(ctx, a.DB, account.ID); err != nil {
			slog.Warn("recording access", "account_id", account.ID, "error", err)
		}
	}
	return account, claims, nil
}

// Revoke logs a token out.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	expires := time.Now().Add(DefaultTokenTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return store.RevokeToken(ctx, a.DB, claims.ID, expires)
}

// RequireAdmin returns ErrForbidden unless account is an administrator.
func RequireAdmin(account *model.Account, action model.Action) error {
	if account == nil {
		return fmt.Errorf("%w: sign in required", model.ErrUnauthenticated)
	}
	_, err := model.Authorize(account.Actor(), action, model.Resource{})
	return err
}
