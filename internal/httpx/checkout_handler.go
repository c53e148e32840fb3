package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sanxiaozi/fulfillment/internal/checkout"
	"github.com/sanxiaozi/fulfillment/internal/inventory"
)

type CheckoutHandler struct {
	Svc *checkout.Service
	Log *logrus.Logger
}

type checkoutReq struct {
	Customer checkout.Customer   `json:"customer"`
	Items    []checkout.CartLine `json:"items"`
}

type insufficientLine struct {
	ProductID string `json:"productId"`
	SpecKey   string `json:"specKey,omitempty"`
	Remain    int    `json:"remain"`
	Want      int    `json:"want"`
}

type checkoutResp struct {
	OK          bool               `json:"ok"`
	ID          string             `json:"id,omitempty"`
	SplitIDs    []string           `json:"splitIds,omitempty"`
	Subtotal    int                `json:"subtotal,omitempty"`
	ShippingFee int                `json:"shippingFee"`
	TotalAmount int                `json:"totalAmount,omitempty"`
	Payment     *paymentInfo       `json:"payment"`
	Message     string             `json:"message,omitempty"`
	Insuff      []insufficientLine `json:"insufficient,omitempty"`
}

type paymentInfo struct {
	RedirectURL string `json:"redirectUrl"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.create)
}

func (h *CheckoutHandler) create(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, checkoutResp{OK: false, Message: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Svc.Checkout(ctx, req.Customer, req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ids := make([]string, 0, len(res.Orders))
	for _, o := range res.Orders {
		ids = append(ids, o.ID)
	}
	resp := checkoutResp{
		OK:          true,
		ID:          res.PaymentRef,
		SplitIDs:    ids,
		Subtotal:    res.Subtotal,
		ShippingFee: res.ShippingFee,
		TotalAmount: res.TotalAmount,
	}
	if res.RedirectURL != "" {
		resp.Payment = &paymentInfo{RedirectURL: res.RedirectURL}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *CheckoutHandler) writeError(w http.ResponseWriter, err error) {
	var stock *inventory.InsufficientStockError
	var backorder *inventory.BackorderLimitError
	var badItem *checkout.InvalidItemError
	var badMail *checkout.InvalidEmailError

	switch {
	case errors.As(err, &stock):
		writeJSON(w, http.StatusBadRequest, checkoutResp{
			OK:      false,
			Message: "not enough stock",
			Insuff: []insufficientLine{{
				ProductID: stock.ProductID, SpecKey: stock.SpecKey,
				Remain: stock.Remain, Want: stock.Want,
			}},
		})
	case errors.As(err, &backorder):
		writeJSON(w, http.StatusBadRequest, checkoutResp{
			OK:      false,
			Message: "back-order limit reached",
			Insuff: []insufficientLine{{
				ProductID: backorder.ProductID, SpecKey: backorder.SpecKey,
				Remain: backorder.Remain, Want: backorder.Want,
			}},
		})
	case errors.As(err, &badItem):
		writeJSON(w, http.StatusBadRequest, checkoutResp{OK: false, Message: "invalid cart item"})
	case errors.As(err, &badMail):
		writeJSON(w, http.StatusBadRequest, checkoutResp{OK: false, Message: "invalid email address"})
	case errors.Is(err, checkout.ErrMissingCustomerField):
		writeJSON(w, http.StatusBadRequest, checkoutResp{OK: false, Message: "name, phone and email are required"})
	case errors.Is(err, inventory.ErrNotFound):
		writeJSON(w, http.StatusBadRequest, checkoutResp{OK: false, Message: "invalid cart item"})
	case errors.Is(err, inventory.ErrContention):
		writeJSON(w, http.StatusInternalServerError, checkoutResp{OK: false, Message: "high demand right now, please retry"})
	default:
		h.Log.WithError(err).Error("checkout failed")
		writeJSON(w, http.StatusInternalServerError, checkoutResp{OK: false, Message: "order could not be saved, please retry"})
	}
}
