package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/imaging"
	"github.com/erazemk/techstore/internal/model"
	"github.com/erazemk/techstore/internal/store"
)

// newestLimit is how many products GET /products/new returns by default.
const newestLimit = 10

// ProductsHandler handles catalog endpoints.
type ProductsHandler struct {
	DB     *sql.DB
	Images imaging.Processor
}

type createProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  *int64          `json:"category_id"`
	IsUsed      bool            `json:"is_used"`
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	CategoryID  *int64           `json:"category_id"`
	IsUsed      *bool            `json:"is_used"`
}

type adjustStockRequest struct {
	Delta int    `json:"delta"`
	Notes string `json:"notes"`
}

type imageResponse struct {
	ImageURL string `json:"image_url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", model.ErrInvalidInput, name)
	}
	return &d, nil
}

func productFilter(r *http.Request) (store.ProductFilter, error) {
	var f store.ProductFilter
	var err error
	q := r.URL.Query()

	if f.Page, err = pageFromQuery(r); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryInt(r, "category_id"); err != nil {
		return f, err
	}
	if f.MinPrice, err = queryDecimal(r, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryDecimal(r, "max_price"); err != nil {
		return f, err
	}
	if f.IsUsed, err = queryBool(r, "is_used"); err != nil {
		return f, err
	}
	desc, err := queryBool(r, "sort_desc")
	if err != nil {
		return f, err
	}
	f.SortDesc = desc != nil && *desc

	deleted, err := queryBool(r, "include_deleted")
	if err != nil {
		return f, err
	}
	if deleted != nil && *deleted {
		if _, err := model.Authorize(actorOf(r), model.ActionViewDeletedProducts, model.Resource{}); err != nil {
			return f, err
		}
		f.IncludeDeleted = true
	}

	f.Search = q.Get("search")
	f.SortBy = q.Get("sort_by")
	return f, nil
}

// List handles GET /api/v1/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := store.ListProducts(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(products))
}

// Newest handles GET /api/v1/products/new.
func (h *ProductsHandler) Newest(w http.ResponseWriter, r *http.Request) {
	limit := newestLimit
	if v, err := queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	} else if v != nil && *v > 0 {
		limit = int(min(*v, store.MaxLimit))
	}

	products, err := store.NewestProducts(r.Context(), h.DB, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(products))
}

// visibleProduct loads a product the caller may see. Deleted products are
// only visible to administrators.
func (h *ProductsHandler) visibleProduct(r *http.Request, id int64) (*model.Product, error) {
	p, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %d", model.ErrNotFound, id)
	}
	if !p.Lifecycle.Visible() && model.Permit(actorOf(r), model.ActionViewDeletedProducts, model.Resource{}) == model.GrantDenied {
		return nil, fmt.Errorf("%w: product %d", model.ErrNotFound, id)
	}
	return p, nil
}

// Get handles GET /api/v1/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.visibleProduct(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Create handles POST /api/v1/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	caller := GetAccount(r.Context())
	p, err := store.CreateProduct(r.Context(), h.DB, store.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		IsUsed:      req.IsUsed,
	}, &caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("product created", "product_id", p.ID, "by", caller.ID)
	jsonResponse(w, http.StatusCreated, p)
}

// Update handles PUT /api/v1/products/{id}.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	caller := GetAccount(r.Context())
	p, err := store.UpdateProduct(r.Context(), h.DB, id, store.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		IsUsed:      req.IsUsed,
	}, &caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.DeleteProduct(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("product deleted", "product_id", id, "by", GetAccount(r.Context()).ID)
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock handles POST /api/v1/products/{id}/stock.
func (h *ProductsHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req adjustStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	caller := GetAccount(r.Context())
	p, err := store.AdjustStock(r.Context(), h.DB, id, req.Delta, req.Notes, &caller.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("stock adjusted", "product_id", id, "delta", req.Delta, "stock", p.Stock, "by", caller.ID)
	jsonResponse(w, http.StatusOK, p)
}

// History handles GET /api/v1/products/{id}/history.
func (h *ProductsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.visibleProduct(r, id); err != nil {
		writeError(w, r, err)
		return
	}
	movements, err := store.ProductHistory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(movements))
}

// UploadImage handles PUT /api/v1/products/{id}/image.
func (h *ProductsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := h.Images.MaxBytes
	if limit <= 0 {
		limit = imaging.DefaultMaxBytes
	}
	// Leave room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	if err := r.ParseMultipartForm(limit); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	img, err := h.Images.Process(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.SetProductImage(r.Context(), h.DB, id, img.Data, img.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, imageResponse{
		ImageURL: store.ProductImageURL(id),
		Width:    img.Width,
		Height:   img.Height,
	})
}

// GetImage handles GET /api/v1/products/{id}/image.
func (h *ProductsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, mime, err := store.GetProductImage(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
