package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/techstore/internal/auth"
	"github.com/erazemk/techstore/internal/events"
	"github.com/erazemk/techstore/internal/imaging"
	"github.com/erazemk/techstore/internal/model"
)

// Options configure the API router.
type Options struct {
	Auth             *auth.Authenticator
	Events           events.Publisher
	Images           imaging.Processor
	OpenRegistration bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Auth: opts.Auth, OpenRegistration: opts.OpenRegistration}
	accountsHandler := &AccountsHandler{DB: db}
	categoriesHandler := &CategoriesHandler{DB: db}
	productsHandler := &ProductsHandler{DB: db, Images: opts.Images}
	reviewsHandler := &ReviewsHandler{DB: db}
	ordersHandler := &OrdersHandler{DB: db, Events: opts.Events}

	authMW := AuthMiddleware(opts.Auth)
	optionalAuth := OptionalAuth(opts.Auth)
	admin := func(action model.Action, h http.HandlerFunc) http.Handler {
		return authMW(RequireAdmin(action)(h))
	}
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	public := func(h http.HandlerFunc) http.Handler { return optionalAuth(h) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth.
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("POST /api/v1/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/v1/auth/password", authed(authHandler.ChangePassword))

	// Accounts: own profile, or admin.
	mux.Handle("GET /api/v1/accounts/me", authed(accountsHandler.Me))
	mux.Handle("PUT /api/v1/accounts/me", authed(accountsHandler.UpdateMe))
	mux.Handle("GET /api/v1/accounts", admin(model.ActionManageAccounts, accountsHandler.List))
	mux.Handle("GET /api/v1/accounts/{id}", authed(accountsHandler.Get))
	mux.Handle("PUT /api/v1/accounts/{id}", admin(model.ActionManageAccounts, accountsHandler.Update))
	mux.Handle("DELETE /api/v1/accounts/{id}", admin(model.ActionManageAccounts, accountsHandler.Delete))

	// Categories: read (public), write (admin).
	mux.Handle("GET /api/v1/categories", public(categoriesHandler.List))
	mux.Handle("GET /api/v1/categories/{id}", public(categoriesHandler.Get))
	mux.Handle("POST /api/v1/categories", admin(model.ActionManageCatalog, categoriesHandler.Create))
	mux.Handle("PUT /api/v1/categories/{id}", admin(model.ActionManageCatalog, categoriesHandler.Update))
	mux.Handle("DELETE /api/v1/categories/{id}", admin(model.ActionManageCatalog, categoriesHandler.Delete))

	// Products: read (public), write (admin).
	mux.Handle("GET /api/v1/products", public(productsHandler.List))
	mux.Handle("GET /api/v1/products/new", public(productsHandler.Newest))
	mux.Handle("GET /api/v1/products/{id}", public(productsHandler.Get))
	mux.Handle("POST /api/v1/products", admin(model.ActionManageCatalog, productsHandler.Create))
	mux.Handle("PUT /api/v1/products/{id}", admin(model.ActionManageCatalog, productsHandler.Update))
	mux.Handle("DELETE /api/v1/products/{id}", admin(model.ActionManageCatalog, productsHandler.Delete))
	mux.Handle("POST /api/v1/products/{id}/stock", admin(model.ActionManageCatalog, productsHandler.AdjustStock))
	mux.Handle("GET /api/v1/products/{id}/history", admin(model.ActionManageCatalog, productsHandler.History))
	mux.Handle("PUT /api/v1/products/{id}/image", admin(model.ActionManageCatalog, productsHandler.UploadImage))
	mux.Handle("GET /api/v1/products/{id}/image", public(productsHandler.GetImage))
	mux.Handle("GET /api/v1/products/{id}/reviews", public(reviewsHandler.ListForProduct))

	// Reviews.
	mux.Handle("POST /api/v1/reviews", authed(reviewsHandler.Create))
	mux.Handle("GET /api/v1/reviews/{id}", public(reviewsHandler.Get))
	mux.Handle("DELETE /api/v1/reviews/{id}", authed(reviewsHandler.Delete))

	// Orders: ownership and status rules are enforced by the store.
	mux.Handle("POST /api/v1/orders", authed(ordersHandler.Place))
	mux.Handle("GET /api/v1/orders/my-orders", authed(ordersHandler.Mine))
	mux.Handle("GET /api/v1/orders", admin(model.ActionListAllOrders, ordersHandler.List))
	mux.Handle("GET /api/v1/orders/{id}", authed(ordersHandler.Get))
	mux.Handle("POST /api/v1/orders/{id}/lines", authed(ordersHandler.AddLine))
	mux.Handle("PUT /api/v1/orders/{id}/status", authed(ordersHandler.SetStatus))
	mux.Handle("DELETE /api/v1/orders/{id}", authed(ordersHandler.Delete))

	return mux
}
