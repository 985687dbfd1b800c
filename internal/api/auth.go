package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/techstore/internal/auth"
	"github.com/erazemk/techstore/internal/model"
	"github.com/erazemk/techstore/internal/store"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	DB               *sql.DB
	Auth             *auth.Authenticator
	OpenRegistration bool
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	Account     model.Account `json:"account"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.OpenRegistration {
		jsonError(w, http.StatusForbidden, "registration is closed")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	email, err := model.NormalizeEmail(req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, err := store.CreateAccount(r.Context(), h.DB, email, req.Name, hash, model.RoleCustomer)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.Auth.Issue(account)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account registered", "account_id", account.ID)
	jsonResponse(w, http.StatusCreated, tokenResponse{
		AccessToken: session.Token,
		TokenType:   "bearer",
		Account:     *account,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	account, session, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		writeError(w, r, err)
		return
	}

	slog.Info("account logged in", "account_id", account.ID, "role", account.Role)
	jsonResponse(w, http.StatusOK, tokenResponse{
		AccessToken: session.Token,
		TokenType:   "bearer",
		Account:     *account,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.Auth.Revoke(r.Context(), claims); err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/v1/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account := GetAccount(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	if !auth.CheckPassword(account.PasswordHash, req.CurrentPassword) {
		writeError(w, r, fmt.Errorf("%w: current password is incorrect", model.ErrUnauthenticated))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := store.UpdateAccount(r.Context(), h.DB, account.ID, store.AccountUpdate{PasswordHash: &hash}); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account changed own password", "account_id", account.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
