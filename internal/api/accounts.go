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

// AccountsHandler handles profile and account administration endpoints.
type AccountsHandler struct {
	DB *sql.DB
}

type updateProfileRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

type updateAccountRequest struct {
	Email    *string     `json:"email"`
	Name     *string     `json:"name"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
	Active   *bool       `json:"active"`
}

// Me handles GET /api/v1/accounts/me.
func (h *AccountsHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, GetAccount(r.Context()))
}

// UpdateMe handles PUT /api/v1/accounts/me.
func (h *AccountsHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := store.UpdateAccount(r.Context(), h.DB, GetAccount(r.Context()).ID, store.AccountUpdate{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, account)
}

// List handles GET /api/v1/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	accounts, err := store.ListAccounts(r.Context(), h.DB, r.URL.Query().Get("search"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(accounts))
}

// Get handles GET /api/v1/accounts/{id}.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := model.Authorize(actorOf(r), model.ActionReadAccount, model.Resource{OwnerID: id}); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := store.GetAccount(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if account == nil {
		jsonError(w, http.StatusNotFound, "account not found")
		return
	}
	jsonResponse(w, http.StatusOK, account)
}

// Update handles PUT /api/v1/accounts/{id}.
func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	caller := GetAccount(r.Context())
	if id == caller.ID && ((req.Role != nil && *req.Role != caller.Role) || (req.Active != nil && !*req.Active)) {
		writeError(w, r, fmt.Errorf("%w: cannot change your own role or deactivate yourself", model.ErrInvalidInput))
		return
	}

	upd := store.AccountUpdate{Email: req.Email, Name: req.Name, Role: req.Role, Active: req.Active}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.PasswordHash = &hash
	}

	account, err := store.UpdateAccount(r.Context(), h.DB, id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account updated", "account_id", id, "by", caller.ID)
	jsonResponse(w, http.StatusOK, account)
}

// Delete handles DELETE /api/v1/accounts/{id}. Accounts are deactivated, not
// removed, so their orders and reviews stay intact.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	caller := GetAccount(r.Context())
	if id == caller.ID {
		jsonError(w, http.StatusBadRequest, "cannot deactivate yourself")
		return
	}

	if err := store.DeactivateAccount(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account deactivated", "account_id", id, "by", caller.ID)
	w.WriteHeader(http.StatusNoContent)
}
