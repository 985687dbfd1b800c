package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/techstore/internal/store"
)

// ReviewsHandler handles product review endpoints.
type ReviewsHandler struct {
	DB *sql.DB
}

type createReviewRequest struct {
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// Create handles POST /api/v1/reviews.
func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	review, err := store.CreateReview(r.Context(), h.DB, GetAccount(r.Context()).ID, req.ProductID, req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, review)
}

// Get handles GET /api/v1/reviews/{id}.
func (h *ReviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	review, err := store.GetReview(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if review == nil {
		jsonError(w, http.StatusNotFound, "review not found")
		return
	}
	jsonResponse(w, http.StatusOK, review)
}

// ListForProduct handles GET /api/v1/products/{id}/reviews.
func (h *ReviewsHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reviews, err := store.ListProductReviews(r.Context(), h.DB, id, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(reviews))
}

// Delete handles DELETE /api/v1/reviews/{id}.
func (h *ReviewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.DeleteReview(r.Context(), h.DB, actorOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
