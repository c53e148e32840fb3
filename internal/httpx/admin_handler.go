package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sanxiaozi/fulfillment/internal/catalog"
	"github.com/sanxiaozi/fulfillment/internal/orders"
)

// AdminHandler serves the back-office read/maintenance endpoints:
// order listing, status flips and product-state re-seeding.
type AdminHandler struct {
	Orders  *orders.Repo
	Catalog *catalog.Repo
	Log     *logrus.Logger
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Get("/api/orders", h.listOrders)
	r.Patch("/api/orders/{id}/status", h.updateStatus)
	r.Get("/api/product-state", h.productState)
	r.Post("/api/product-state/{productID}", h.upsertProductState)
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListAll(ctx)
	if err != nil {
		h.Log.WithError(err).Error("list orders failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get orders"})
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status orders.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !orders.ValidStatus(body.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now()
	ok, err := h.Orders.UpdateStatus(ctx, id, body.Status, now)
	if err != nil {
		h.Log.WithError(err).WithField("order_id", id).Error("status update failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update order status"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found or transition not allowed"})
		return
	}

	resp := map[string]any{"id": id, "status": body.Status}
	if body.Status == orders.StatusCompleted {
		resp["completedAt"] = now.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) productState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	state, err := h.Catalog.AllState(ctx)
	if err != nil {
		h.Log.WithError(err).Error("product state read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get product state"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *AdminHandler) upsertProductState(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	var in catalog.StateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if in.Price <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a positive number"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Catalog.UpsertState(ctx, productID, in); err != nil {
		h.Log.WithError(err).WithField("product_id", productID).Error("product state upsert failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update product state"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
