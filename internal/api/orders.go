package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/techstore/internal/events"
	"github.com/erazemk/techstore/internal/model"
	"github.com/erazemk/techstore/internal/store"
)

// publishTimeout bounds how long a request waits to hand an event to the publisher.
const publishTimeout = 5 * time.Second

// OrdersHandler handles order endpoints.
type OrdersHandler struct {
	DB     *sql.DB
	Events events.Publisher
}

type placeOrderRequest struct {
	Items           []model.LineRequest `json:"items"`
	ShippingAddress string              `json:"shipping_address"`
	Notes           string              `json:"notes"`
}

type addLineRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// publish emits an order event after the change has committed. Failures are
// logged; the change itself already succeeded.
func (h *OrdersHandler) publish(r *http.Request, eventType string, order *model.Order) {
	if h.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
	defer cancel()

	e := events.NewEvent(eventType, order, actorOf(r).ID)
	if err := h.Events.Publish(ctx, e); err != nil {
		slog.Warn("publishing order event", "type", eventType, "order_id", order.ID, "error", err)
	}
}

// Place handles POST /api/v1/orders.
func (h *OrdersHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	caller := GetAccount(r.Context())
	order, err := store.PlaceOrder(r.Context(), h.DB, caller.ID, req.Items, req.ShippingAddress, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("order placed", "order_id", order.ID, "account_id", caller.ID, "total", order.Total.String())
	h.publish(r, events.OrderPlaced, order)
	jsonResponse(w, http.StatusCreated, order)
}

// Mine handles GET /api/v1/orders/my-orders.
func (h *OrdersHandler) Mine(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := store.ListOrders(r.Context(), h.DB, store.OrderFilter{
		AccountID: GetAccount(r.Context()).ID,
		Page:      page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(orders))
}

// List handles GET /api/v1/orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := store.OrderFilter{Page: page}
	if s := r.URL.Query().Get("status"); s != "" {
		if f.Status, err = model.ParseOrderStatus(s); err != nil {
			writeError(w, r, err)
			return
		}
	}

	orders, err := store.ListOrders(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(orders))
}

// Get handles GET /api/v1/orders/{id}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := store.ReadOrder(r.Context(), h.DB, actorOf(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, order)
}

// AddLine handles POST /api/v1/orders/{id}/lines.
func (h *OrdersHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := store.AddOrderLine(r.Context(), h.DB, actorOf(r), id,
		model.LineRequest{ProductID: req.ProductID, Quantity: req.Quantity}, req.UnitPrice)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, events.OrderLineAdded, order)
	jsonResponse(w, http.StatusCreated, order)
}

// SetStatus handles PUT /api/v1/orders/{id}/status.
func (h *OrdersHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := store.SetOrderStatus(r.Context(), h.DB, actorOf(r), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("order status changed", "order_id", id, "status", order.Status, "by", actorOf(r).ID)
	h.publish(r, events.OrderStatusChanged, order)
	jsonResponse(w, http.StatusOK, order)
}

// Delete handles DELETE /api/v1/orders/{id}.
func (h *OrdersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := store.DeleteOrder(r.Context(), h.DB, actorOf(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
