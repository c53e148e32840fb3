package httpx

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sanxiaozi/fulfillment/internal/payment"
)

var checkoutFormTpl = template.Must(template.New("gateway-form").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment…</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range $k, $v := .Fields}}
<input type="hidden" name="{{$k}}" value="{{$v}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

var resultTpl = template.Must(template.New("pay-result").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Order {{.PaymentRef}}</title></head>
<body>
<h1>Order {{.PaymentRef}}</h1>
{{- if eq .State "paid"}}
<p>Payment received. Total: {{.TotalAmount}}</p>
{{- else if eq .State "atm-pending"}}
<p>Awaiting ATM transfer. Total: {{.TotalAmount}}</p>
<p>Bank {{.BankCode}}, account {{.VirtualAccount}}, pay before {{.AccountExpire}}.</p>
{{- else}}
<p>Payment pending. Total: {{.TotalAmount}}</p>
{{- end}}
</body>
</html>
`))

type PaymentHandler struct {
	Adapter *payment.Adapter
	Log     *logrus.Logger
}

func (h *PaymentHandler) Register(r *chi.Mux) {
	r.Get("/pay/{gateway}", h.redirect)
	r.Get("/pay/{gateway}/result", h.result)
	r.Post("/{gateway}/payment-info", h.paymentInfo)
	r.Post("/{gateway}/return", h.confirm)
}

func (h *PaymentHandler) known(w http.ResponseWriter, r *http.Request) bool {
	if chi.URLParam(r, "gateway") != h.Adapter.Name() {
		http.NotFound(w, r)
		return false
	}
	return true
}

func (h *PaymentHandler) redirect(w http.ResponseWriter, r *http.Request) {
	if !h.known(w, r) {
		return
	}
	ref := r.URL.Query().Get("ref")
	pm := r.URL.Query().Get("pm")
	if ref == "" {
		http.Error(w, "missing ref", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	form, err := h.Adapter.BuildCheckout(ctx, ref, pm)
	if err != nil {
		if errors.Is(err, payment.ErrRefNotFound) {
			http.NotFound(w, r)
			return
		}
		h.Log.WithError(err).WithField("payment_ref", ref).Error("build gateway form failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := checkoutFormTpl.Execute(w, form); err != nil {
		h.Log.WithError(err).Error("render gateway form failed")
	}
}

func (h *PaymentHandler) paymentInfo(w http.ResponseWriter, r *http.Request) {
	if !h.known(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		_, _ = w.Write([]byte(payment.AckFail))
		return
	}
	ack := h.Adapter.HandlePaymentInfo(r.Context(), r.PostForm)
	_, _ = w.Write([]byte(ack))
}

func (h *PaymentHandler) confirm(w http.ResponseWriter, r *http.Request) {
	if !h.known(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		_, _ = w.Write([]byte(payment.AckFail))
		return
	}
	ack := h.Adapter.HandleReturn(r.Context(), r.PostForm)
	_, _ = w.Write([]byte(ack))
}

func (h *PaymentHandler) result(w http.ResponseWriter, r *http.Request) {
	if !h.known(w, r) {
		return
	}
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		http.Error(w, "missing ref", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.Adapter.Status(ctx, ref)
	if err != nil {
		if errors.Is(err, payment.ErrRefNotFound) {
			http.NotFound(w, r)
			return
		}
		h.Log.WithError(err).WithField("payment_ref", ref).Error("payment status read failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultTpl.Execute(w, view); err != nil {
		h.Log.WithError(err).Error("render result page failed")
	}
}
