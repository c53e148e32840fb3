package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/sanxiaozi/fulfillment/internal/kafka"
	"github.com/sanxiaozi/fulfillment/internal/orders"
	"github.com/sanxiaozi/fulfillment/internal/redisx"
)

// Gateway ack sentinels. Anything other than AckOK makes the gateway
// redeliver the callback.
const (
	AckOK   = "1|OK"
	AckFail = "0|CheckMacValue Error"
)

var ErrRefNotFound = errors.New("no orders for payment ref")

// OrderStore is the slice of the order repo the adapter mutates.
type OrderStore interface {
	ByRef(ctx context.Context, ref string) ([]*orders.Order, error)
	AttachPaymentInfo(ctx context.Context, ref, bankCode, vAccount, expire string) (int64, error)
	MarkPaid(ctx context.Context, ref, gatewayTxn string, paidAt time.Time) (int64, error)
	ClaimPaidNotice(ctx context.Context, ref string) (bool, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Adapter builds signed redirect payloads for the gateway and verifies
// its inbound callbacks.
type Adapter struct {
	Store    OrderStore
	Redis    *redis.Client // optional status cache
	Producer Publisher     // optional order.paid events
	Log      *logrus.Logger

	ServiceName string
	MerchantID  string
	HashKey     string
	HashIV      string
	CheckoutURL string
	BaseURL     string // public base for callback endpoints

	Now func() time.Time
}

func (a *Adapter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Name is the gateway's path segment in our routes.
func (a *Adapter) Name() string { return "ecpay" }

// CheckoutForm is rendered as an auto-submitting POST to the gateway.
type CheckoutForm struct {
	Action string
	Fields map[string]string
}

// BuildCheckout sums every order sharing the ref into one gateway trade
// and signs the parameter set. pm chooses ATM or Credit; anything else
// leaves the method unrestricted.
func (a *Adapter) BuildCheckout(ctx context.Context, ref, pm string) (*CheckoutForm, error) {
	list, err := a.Store.ByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrRefNotFound
	}

	total := 0
	var names []string
	for _, o := range list {
		total += o.TotalAmount
		for _, it := range o.Items {
			names = append(names, fmt.Sprintf("%s x %d", it.Name, it.Qty))
		}
	}

	choose := "ALL"
	switch pm {
	case "ATM":
		choose = "ATM"
	case "Credit":
		choose = "Credit"
	}

	params := map[string]string{
		"MerchantID":        a.MerchantID,
		"MerchantTradeNo":   ref,
		"MerchantTradeDate": a.now().Format("2006/01/02 15:04:05"),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.Itoa(total),
		"TradeDesc":         "online order",
		"ItemName":          strings.Join(names, "#"),
		"ReturnURL":         a.BaseURL + "/" + a.Name() + "/return",
		"PaymentInfoURL":    a.BaseURL + "/" + a.Name() + "/payment-info",
		"ClientBackURL":     a.BaseURL + "/pay/" + a.Name() + "/result?ref=" + url.QueryEscape(ref),
		"ChoosePayment":     choose,
		"EncryptType":       "1",
	}
	params[checkMacField] = Sign(params, a.HashKey, a.HashIV)
	return &CheckoutForm{Action: a.CheckoutURL, Fields: params}, nil
}

func flatten(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k := range form {
		out[k] = form.Get(k)
	}
	return out
}

// HandlePaymentInfo processes the virtual-account issuance callback.
// Signature mismatch is rejected without touching state; everything
// else acks success so the gateway stops redelivering, even when the
// ref matches nothing.
func (a *Adapter) HandlePaymentInfo(ctx context.Context, form url.Values) string {
	params := flatten(form)
	ref := params["MerchantTradeNo"]
	log := a.Log.WithFields(logrus.Fields{"gateway": a.Name(), "payment_ref": ref})

	if !Verify(params, a.HashKey, a.HashIV) {
		log.Warn("payment-info callback signature mismatch")
		return AckFail
	}

	n, err := a.Store.AttachPaymentInfo(ctx, ref, params["BankCode"], params["vAccount"], params["ExpireDate"])
	if err != nil {
		log.WithError(err).Error("attach payment info failed")
		return AckFail
	}
	if n == 0 {
		log.Info("payment-info callback matched no orders")
		return AckOK
	}

	a.cacheStatus(ctx, ref, "atm-pending")
	log.WithField("orders", n).Info("virtual account attached")
	return AckOK
}

// HandleReturn processes the payment confirmation callback. The paid
// transition is idempotent: a replay acks success and triggers no side
// effects.
func (a *Adapter) HandleReturn(ctx context.Context, form url.Values) string {
	params := flatten(form)
	ref := params["MerchantTradeNo"]
	log := a.Log.WithFields(logrus.Fields{"gateway": a.Name(), "payment_ref": ref})

	if !Verify(params, a.HashKey, a.HashIV) {
		log.Warn("return callback signature mismatch")
		return AckFail
	}
	if params["RtnCode"] != "1" {
		log.WithField("rtn_code", params["RtnCode"]).Warn("gateway reported unsuccessful trade")
		return AckOK
	}
	if a.seenPaid(ctx, ref) {
		return AckOK
	}

	paidAt := a.now()
	n, err := a.Store.MarkPaid(ctx, ref, params["TradeNo"], paidAt)
	if err != nil {
		log.WithError(err).Error("mark paid failed")
		return AckFail
	}
	if n == 0 {
		// replay or unknown ref: nothing to do, still ack
		return AckOK
	}

	a.cacheStatus(ctx, ref, "paid")
	a.markSeenPaid(ctx, ref)
	if claimed, err := a.Store.ClaimPaidNotice(ctx, ref); err != nil {
		log.WithError(err).Error("paid notice claim failed")
	} else if claimed {
		a.publishPaid(ctx, ref, params["TradeNo"], paidAt)
	}
	log.WithField("orders", n).Info("payment confirmed")
	return AckOK
}

func (a *Adapter) publishPaid(ctx context.Context, ref, txn string, paidAt time.Time) {
	if a.Producer == nil {
		return
	}
	list, err := a.Store.ByRef(ctx, ref)
	if err != nil || len(list) == 0 {
		return
	}
	total := 0
	ids := make([]string, 0, len(list))
	for _, o := range list {
		total += o.TotalAmount
		ids = append(ids, o.ID)
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    paidAt.UTC(),
		Producer:      a.ServiceName,
		CorrelationID: ref,
		Payload: kafkax.MustMarshal(orders.OrderPaidPayload{
			PaymentRef:  ref,
			OrderIDs:    ids,
			TotalAmount: total,
			GatewayTxn:  txn,
			Email:       list[0].Customer.Email,
			PaidAt:      paidAt,
		}),
	}
	a.Producer.Publish(orders.PartitionKey(ref), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// seenPaid short-circuits callback replays without a database round
// trip. The payment_status guard in the store stays authoritative; a
// cache miss just falls through to it.
func (a *Adapter) seenPaid(ctx context.Context, ref string) bool {
	if a.Redis == nil {
		return false
	}
	exists, err := redisx.Exists(ctx, a.Redis, fmt.Sprintf(redisx.KeyPaidRef, ref))
	return err == nil && exists
}

func (a *Adapter) markSeenPaid(ctx context.Context, ref string) {
	if a.Redis == nil {
		return
	}
	_ = a.Redis.Set(ctx, fmt.Sprintf(redisx.KeyPaidRef, ref), "1", redisx.TTLPaidRef).Err()
}

func (a *Adapter) cacheStatus(ctx context.Context, ref, status string) {
	if a.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyPayStatus, ref)
	_ = a.Redis.Set(ctx, key, status, redisx.TTLStatusCache).Err()
}

// StatusView backs the customer-facing result page.
type StatusView struct {
	PaymentRef     string
	State          string // paid | atm-pending | pending
	BankCode       string
	VirtualAccount string
	AccountExpire  string
	TotalAmount    int
}

func (a *Adapter) Status(ctx context.Context, ref string) (*StatusView, error) {
	list, err := a.Store.ByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrRefNotFound
	}

	v := &StatusView{PaymentRef: ref, State: "pending"}
	for _, o := range list {
		v.TotalAmount += o.TotalAmount
	}
	first := list[0]
	v.BankCode = first.BankCode
	v.VirtualAccount = first.VirtualAccount
	v.AccountExpire = first.AccountExpire
	if first.PaymentStatus == orders.PaymentPaid {
		v.State = "paid"
	} else if first.VirtualAccount != "" {
		v.State = "atm-pending"
	}
	return v, nil
}
